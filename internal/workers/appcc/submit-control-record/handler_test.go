// internal/workers/appcc/submit-control-record/handler_test.go
package submitcontrolrecord

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"appcc-workers/internal/common/database"
	apperrors "appcc-workers/internal/common/errors"
	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/common/templates"
	"appcc-workers/internal/forms"
	"appcc-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const cleaningStructure = `{"sections":[{"id":"s1","title":"Limpieza","fields":[{"id":"obs","type":"text","label":"Observaciones","required":true}]}]}`

var (
	templateColumns = []string{"id", "name", "frequency", "required_role", "form_structure"}
	recordColumns   = []string{"id", "template_id", "status", "form_data", "completed_by", "completed_at"}
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
}

func createTestConfig() *Config {
	return &Config{
		Timeout:         10 * time.Second,
		DefaultUserName: forms.DefaultUserName,
		Location:        time.UTC,
	}
}

func createTestHandler(t *testing.T, db *sql.DB) *Handler {
	store := templates.NewStore(&database.PostgresClient{DB: db}, nil, time.Minute, logger.NewTestLogger(t))
	h := NewHandler(createTestConfig(), store, nil, logger.NewTestLogger(t))
	h.now = fixedNow
	return h
}

func setupDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectTemplate(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM appcc_templates")).
		WithArgs("tpl-limpieza").
		WillReturnRows(sqlmock.NewRows(templateColumns).
			AddRow("tpl-limpieza", "Limpieza diaria", "daily", "cocina", cleaningStructure))
}

func expectCompletion(mock sqlmock.Sqlmock, recordID interface{}) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appcc_records")).
		WithArgs(recordID, "tpl-limpieza", models.RecordStatusCompleted, sqlmock.AnyArg(), int64(42), fixedNow()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_log")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func createInput(recordID string, values forms.Values, signed bool) *Input {
	return &Input{
		TemplateID: "tpl-limpieza",
		RecordID:   recordID,
		User:       &forms.User{ID: 42, Name: "Lucía", Role: "cocina"},
		Values:     values,
		Signed:     signed,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_NewRecord(t *testing.T) {
	db, mock := setupDB(t)
	handler := createTestHandler(t, db)

	expectTemplate(mock)
	expectCompletion(mock, sqlmock.AnyArg())

	output, err := handler.Execute(context.Background(), createInput("", forms.Values{"obs": "Todo limpio"}, true))

	require.NoError(t, err)
	_, parseErr := uuid.Parse(output.RecordID)
	assert.NoError(t, parseErr)
	assert.Equal(t, models.RecordStatusCompleted, output.Status)
	assert.Equal(t, "Limpieza diaria", output.TemplateName)
	assert.Equal(t, "2026-03-14T09:26:53.589Z", output.CompletedAt)

	uid := int64(42)
	want := forms.Values{
		"obs":           "Todo limpio",
		"date":          "2026-03-14T09:26",
		"responsible":   "Lucía",
		"responsibleId": int64(42),
		"signature":     forms.Signature{Name: "Lucía", Timestamp: "2026-03-14T09:26:53.589Z", UserID: &uid},
		"completedAt":   "2026-03-14T09:26:53.589Z",
	}
	if diff := cmp.Diff(want, output.Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ResumesPendingRecord(t *testing.T) {
	db, mock := setupDB(t)
	handler := createTestHandler(t, db)

	expectTemplate(mock)
	mock.ExpectQuery(regexp.QuoteMeta("FROM appcc_records")).
		WithArgs("rec-7").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("rec-7", "tpl-limpieza", "pending", []byte(`{"obs":"Borrador"}`), nil, nil))
	expectCompletion(mock, "rec-7")

	output, err := handler.Execute(context.Background(), createInput("rec-7", nil, true))

	require.NoError(t, err)
	assert.Equal(t, "rec-7", output.RecordID)
	assert.Equal(t, "Borrador", output.Payload["obs"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UnknownRecordIDIsCreated(t *testing.T) {
	db, mock := setupDB(t)
	handler := createTestHandler(t, db)

	expectTemplate(mock)
	mock.ExpectQuery(regexp.QuoteMeta("FROM appcc_records")).
		WithArgs("rec-new").
		WillReturnError(sql.ErrNoRows)
	expectCompletion(mock, "rec-new")

	output, err := handler.Execute(context.Background(), createInput("rec-new", forms.Values{"obs": "ok"}, true))

	require.NoError(t, err)
	assert.Equal(t, "rec-new", output.RecordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_IgnoresClientSuppliedSignature(t *testing.T) {
	db, mock := setupDB(t)
	handler := createTestHandler(t, db)

	expectTemplate(mock)
	expectCompletion(mock, sqlmock.AnyArg())

	output, err := handler.Execute(context.Background(), createInput("", forms.Values{
		"obs":         "ok",
		"signature":   map[string]interface{}{"name": "Otro"},
		"completedAt": "1999-01-01T00:00:00.000Z",
	}, true))

	require.NoError(t, err)
	sig, ok := output.Payload["signature"].(forms.Signature)
	require.True(t, ok)
	assert.Equal(t, "Lucía", sig.Name)
	assert.Equal(t, "2026-03-14T09:26:53.589Z", output.Payload["completedAt"])
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_ValidationFailed(t *testing.T) {
	db, mock := setupDB(t)
	handler := createTestHandler(t, db)

	expectTemplate(mock)

	output, err := handler.Execute(context.Background(), createInput("", forms.Values{}, false))

	assert.Nil(t, output)
	stdErr := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeFormValidationFailed, stdErr.Code)
	assert.Equal(t, map[string]string{
		"obs":       forms.MsgRequired,
		"signature": forms.MsgSignatureRequired,
	}, stdErr.Metadata["errors"])

	vars := apperrors.ConvertToBPMNError(stdErr).ToErrorVariables()
	encoded, jsonErr := json.Marshal(vars["formErrors"])
	require.NoError(t, jsonErr)
	assert.JSONEq(t, `{"obs":"Este campo es obligatorio","signature":"Es obligatorio firmar el control"}`, string(encoded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AlreadyCompleted(t *testing.T) {
	db, mock := setupDB(t)
	handler := createTestHandler(t, db)

	expectTemplate(mock)
	mock.ExpectQuery(regexp.QuoteMeta("FROM appcc_records")).
		WithArgs("rec-done").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("rec-done", "tpl-limpieza", "Completado", []byte(`{"obs":"ok"}`), int64(42), fixedNow()))

	_, err := handler.Execute(context.Background(), createInput("rec-done", forms.Values{"obs": "otra"}, true))

	assert.Equal(t, apperrors.ErrCodeRecordAlreadyComplete, apperrors.Normalize(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_RecordOfAnotherTemplate(t *testing.T) {
	db, mock := setupDB(t)
	handler := createTestHandler(t, db)

	expectTemplate(mock)
	mock.ExpectQuery(regexp.QuoteMeta("FROM appcc_records")).
		WithArgs("rec-9").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("rec-9", "tpl-temperaturas", "pending", nil, nil, nil))

	_, err := handler.Execute(context.Background(), createInput("rec-9", forms.Values{"obs": "ok"}, true))

	assert.Equal(t, apperrors.ErrCodeRecordDataInvalid, apperrors.Normalize(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ConcurrentCompletion(t *testing.T) {
	db, mock := setupDB(t)
	handler := createTestHandler(t, db)

	expectTemplate(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appcc_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := handler.Execute(context.Background(), createInput("", forms.Values{"obs": "ok"}, true))

	assert.Equal(t, apperrors.ErrCodeRecordAlreadyComplete, apperrors.Normalize(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(mock sqlmock.Sqlmock)
		input        *Input
		expectedCode apperrors.ErrorCode
	}{
		{
			name:         "missing template id",
			setup:        func(sqlmock.Sqlmock) {},
			input:        &Input{Values: forms.Values{}},
			expectedCode: apperrors.ErrCodeParseError,
		},
		{
			name: "template not found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM appcc_templates")).WillReturnError(sql.ErrNoRows)
			},
			input:        createInput("", forms.Values{"obs": "ok"}, true),
			expectedCode: apperrors.ErrCodeTemplateNotFound,
		},
		{
			name: "broken template structure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM appcc_templates")).
					WillReturnRows(sqlmock.NewRows(templateColumns).
						AddRow("tpl-limpieza", "Limpieza diaria", "daily", "cocina", `{"sections":"x"}`))
			},
			input:        createInput("", forms.Values{"obs": "ok"}, true),
			expectedCode: apperrors.ErrCodeFormSchemaInvalid,
		},
		{
			name: "record lookup fails",
			setup: func(mock sqlmock.Sqlmock) {
				expectTemplate(mock)
				mock.ExpectQuery(regexp.QuoteMeta("FROM appcc_records")).WillReturnError(errors.New("connection reset"))
			},
			input:        createInput("rec-1", forms.Values{"obs": "ok"}, true),
			expectedCode: apperrors.ErrCodeQueryExecutionFailed,
		},
		{
			name: "insert fails",
			setup: func(mock sqlmock.Sqlmock) {
				expectTemplate(mock)
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appcc_records")).WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
			input:        createInput("", forms.Values{"obs": "ok"}, true),
			expectedCode: apperrors.ErrCodeDatabaseInsertFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupDB(t)
			handler := createTestHandler(t, db)
			tt.setup(mock)

			output, err := handler.Execute(context.Background(), tt.input)

			assert.Nil(t, output)
			require.Error(t, err)
			assert.Equal(t, tt.expectedCode, apperrors.Normalize(err).Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
