package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code    ErrorCode
		retries int
	}{
		{ErrCodeDatabaseInsertFailed, 3},
		{ErrCodeSearchIndexFailed, 3},
		{ErrCodeNotificationSendFailed, 3},
		{ErrCodeCacheUnavailable, 2},
		{ErrCodeFormSchemaInvalid, 0},
		{ErrCodeFormValidationFailed, 0},
		{ErrCodeTemplateNotFound, 0},
		{ErrCodeRecordAlreadyComplete, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.retries, GetRetryCount(tt.code))
		})
	}
}

func TestConvertToBPMNError_CarriesFormErrors(t *testing.T) {
	stdErr := NewFormValidationFailedError(map[string]string{
		"obs":       "Este campo es obligatorio",
		"signature": "Es obligatorio firmar el control",
	})

	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "FORM_VALIDATION_FAILED", bpmnErr.Code)
	assert.Equal(t, 0, bpmnErr.Retries)
	assert.False(t, bpmnErr.Retryable)

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "FORM_VALIDATION_FAILED", vars["errorCode"])
	assert.Equal(t, "FORM_VALIDATION_FAILED", vars["originalErrorCode"])
	formErrors, ok := vars["formErrors"].(map[string]string)
	require.True(t, ok)
	assert.Len(t, formErrors, 2)
}

func TestConvertToBPMNError_NonRetryableOverridesCode(t *testing.T) {
	stdErr := NewDatabaseInsertFailedError(fmt.Errorf("boom"))
	stdErr.Retryable = false

	assert.Equal(t, 0, ConvertToBPMNError(stdErr).Retries)
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NewTemplateNotFoundError("tpl-1"))
	assert.Equal(t, ErrCodeTemplateNotFound, Normalize(wrapped).Code)

	plain := Normalize(fmt.Errorf("something odd"))
	assert.Equal(t, ErrCodeInternalError, plain.Code)
	assert.Equal(t, "something odd", plain.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "FORM", GetErrorCategory(ErrCodeFormSchemaInvalid))
	assert.Equal(t, "APPCC", GetErrorCategory(ErrCodeTemplateNotFound))
	assert.Equal(t, "APPCC", GetErrorCategory(ErrCodeRecordAlreadyComplete))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeCacheUnavailable))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchIndexFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeParseError))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}
