// internal/workers/appcc/validate-control-form/handler_test.go
package validatecontrolform

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "appcc-workers/internal/common/errors"
	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/forms"
	"appcc-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const fridgeStructure = `{"sections":[{"id":"camaras","title":"Cámaras","fields":[
 {"id":"temp","type":"temperature","label":"Temperatura cámara 1","required":true,"temperatureRange":{"min":0,"max":4}},
 {"id":"obs","type":"textarea","label":"Observaciones","validations":{"maxLength":20}}]}]}`

type fakeTemplates struct {
	templates map[string]*models.ControlTemplate
	calls     int
}

func (f *fakeTemplates) GetTemplate(_ context.Context, id string) (*models.ControlTemplate, error) {
	f.calls++
	if t, ok := f.templates[id]; ok {
		return t, nil
	}
	return nil, apperrors.NewTemplateNotFoundError(id)
}

func createTestConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}

func createTestHandler(t *testing.T, templates TemplateSource) *Handler {
	if templates == nil {
		templates = &fakeTemplates{}
	}
	return NewHandler(createTestConfig(), templates, nil, logger.NewTestLogger(t))
}

func createInput(structure string, values forms.Values, signed bool) *Input {
	var raw json.RawMessage
	if structure != "" {
		raw = json.RawMessage(structure)
	}
	return &Input{
		FormStructure:     raw,
		Values:            values,
		SignatureComplete: signed,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	tests := []struct {
		name           string
		input          *Input
		validateOutput func(t *testing.T, output *Output)
	}{
		{
			name:  "signed and within range",
			input: createInput(fridgeStructure, forms.Values{"temp": "3.5"}, true),
			validateOutput: func(t *testing.T, output *Output) {
				assert.True(t, output.IsValid)
				assert.Empty(t, output.Errors)
				assert.Equal(t, 0, output.ErrorCount)
			},
		},
		{
			name:  "temperature out of range",
			input: createInput(fridgeStructure, forms.Values{"temp": 7}, true),
			validateOutput: func(t *testing.T, output *Output) {
				assert.False(t, output.IsValid)
				assert.Equal(t, forms.Errors{"temp": "La temperatura debe estar entre 0°C y 4°C"}, output.Errors)
				assert.Equal(t, 1, output.ErrorCount)
			},
		},
		{
			name:  "unsigned and empty",
			input: createInput(fridgeStructure, forms.Values{}, false),
			validateOutput: func(t *testing.T, output *Output) {
				assert.False(t, output.IsValid)
				assert.Equal(t, forms.Errors{
					"temp":      forms.MsgRequired,
					"signature": forms.MsgSignatureRequired,
				}, output.Errors)
				assert.Equal(t, 2, output.ErrorCount)
			},
		},
		{
			name: "read-only form is always valid",
			input: &Input{
				FormStructure: json.RawMessage(fridgeStructure),
				Values:        forms.Values{},
				IsReadOnly:    true,
			},
			validateOutput: func(t *testing.T, output *Output) {
				assert.True(t, output.IsValid)
			},
		},
		{
			name: "structure passed as a serialized string",
			input: func() *Input {
				encoded, _ := json.Marshal(fridgeStructure)
				return &Input{FormStructure: encoded, Values: forms.Values{"temp": 2}, SignatureComplete: true}
			}(),
			validateOutput: func(t *testing.T, output *Output) {
				assert.True(t, output.IsValid)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t, nil)

			output, err := handler.Execute(context.Background(), tt.input)

			require.NoError(t, err)
			require.NotNil(t, output)
			tt.validateOutput(t, output)
		})
	}
}

func TestHandler_Execute_LoadsTemplate(t *testing.T) {
	templates := &fakeTemplates{templates: map[string]*models.ControlTemplate{
		"tpl-camaras": {ID: "tpl-camaras", Name: "Temperatura cámaras", FormStructure: fridgeStructure},
	}}
	handler := createTestHandler(t, templates)

	output, err := handler.Execute(context.Background(), &Input{
		TemplateID: "tpl-camaras",
		Values:     forms.Values{"temp": "9"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, templates.calls)
	assert.False(t, output.IsValid)
	assert.Contains(t, output.Errors, "temp")
	assert.Contains(t, output.Errors, "signature")
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name         string
		input        *Input
		expectedCode apperrors.ErrorCode
	}{
		{
			name:         "unknown template",
			input:        &Input{TemplateID: "tpl-missing"},
			expectedCode: apperrors.ErrCodeTemplateNotFound,
		},
		{
			name:         "malformed inline structure",
			input:        createInput(`{"sections": [{"id": "s"}]}`, nil, true),
			expectedCode: apperrors.ErrCodeFormSchemaInvalid,
		},
		{
			name:         "unsupported field type",
			input:        createInput(`{"sections":[{"id":"s","title":"S","fields":[{"id":"x","type":"rating","label":"X"}]}]}`, nil, true),
			expectedCode: apperrors.ErrCodeFormSchemaInvalid,
		},
		{
			name:         "nothing to validate against",
			input:        createInput("", forms.Values{}, true),
			expectedCode: apperrors.ErrCodeParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t, nil)

			output, err := handler.Execute(context.Background(), tt.input)

			assert.Nil(t, output)
			require.Error(t, err)
			assert.Equal(t, tt.expectedCode, apperrors.Normalize(err).Code)
		})
	}
}

func TestHandler_Execute_StoredTemplateWithBadSchema(t *testing.T) {
	templates := &fakeTemplates{templates: map[string]*models.ControlTemplate{
		"tpl-broken": {ID: "tpl-broken", FormStructure: `not json`},
	}}
	handler := createTestHandler(t, templates)

	_, err := handler.Execute(context.Background(), &Input{TemplateID: "tpl-broken"})

	require.Error(t, err)
	stdErr := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeFormSchemaInvalid, stdErr.Code)
	assert.Contains(t, stdErr.Details, "tpl-broken")
}
