package templates

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"appcc-workers/internal/common/database"
	apperrors "appcc-workers/internal/common/errors"
	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const structureJSON = `{"sections":[{"id":"s1","title":"Cámaras","fields":[{"id":"temp","type":"temperature","label":"Cámara 1","required":true,"temperatureRange":{"min":0,"max":4}}]}]}`

var templateColumns = []string{"id", "name", "frequency", "required_role", "form_structure"}

func setupRedis(t *testing.T) (*database.RedisClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	return &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}, mr
}

func setupStore(t *testing.T, cache *database.RedisClient) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(&database.PostgresClient{DB: db}, cache, time.Minute, logger.NewTestLogger(t)), mock
}

// ==========================
// Core Functionality Tests
// ==========================

func TestStore_GetTemplate_ReadThrough(t *testing.T) {
	cache, mr := setupRedis(t)
	store, mock := setupStore(t, cache)

	mock.ExpectQuery(regexp.QuoteMeta(selectTemplateQuery)).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows(templateColumns).
			AddRow("tpl-1", "Temperaturas cámaras", "daily", "cocina", structureJSON))

	ctx := context.Background()
	tpl, err := store.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Temperaturas cámaras", tpl.Name)
	assert.Equal(t, structureJSON, tpl.FormStructure)
	assert.True(t, mr.Exists(CacheKey("tpl-1")))
	assert.Equal(t, time.Minute, mr.TTL(CacheKey("tpl-1")))

	// second read is served from Redis; no further query is expected
	tpl, err = store.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "daily", tpl.Frequency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetTemplate_CacheDownFallsBackToDB(t *testing.T) {
	cache, mr := setupRedis(t)
	mr.SetError("LOADING Redis is loading the dataset in memory")
	store, mock := setupStore(t, cache)

	mock.ExpectQuery(regexp.QuoteMeta(selectTemplateQuery)).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows(templateColumns).
			AddRow("tpl-1", "Temperaturas cámaras", "daily", "cocina", structureJSON))

	tpl, err := store.GetTemplate(context.Background(), "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "tpl-1", tpl.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetTemplate_CorruptEntryIsReplaced(t *testing.T) {
	cache, mr := setupRedis(t)
	require.NoError(t, mr.Set(CacheKey("tpl-1"), "{not json"))
	store, mock := setupStore(t, cache)

	mock.ExpectQuery(regexp.QuoteMeta(selectTemplateQuery)).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows(templateColumns).
			AddRow("tpl-1", "Temperaturas cámaras", "daily", "cocina", structureJSON))

	ctx := context.Background()
	tpl, err := store.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Temperaturas cámaras", tpl.Name)

	raw, err := mr.Get(CacheKey("tpl-1"))
	require.NoError(t, err)
	assert.Contains(t, raw, "Temperaturas cámaras")

	// the refilled entry serves the next read
	_, err = store.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetTemplate_NotFound(t *testing.T) {
	store, mock := setupStore(t, nil)

	mock.ExpectQuery(regexp.QuoteMeta(selectTemplateQuery)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(templateColumns))

	_, err := store.GetTemplate(context.Background(), "missing")

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeTemplateNotFound, stdErr.Code)
}

func TestStore_GetTemplate_QueryError(t *testing.T) {
	store, mock := setupStore(t, nil)

	mock.ExpectQuery(regexp.QuoteMeta(selectTemplateQuery)).
		WithArgs("tpl-1").
		WillReturnError(errors.New("connection reset by peer"))

	_, err := store.GetTemplate(context.Background(), "tpl-1")

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestStore_Invalidate(t *testing.T) {
	client, redisMock := redismock.NewClientMock()
	store, _ := setupStore(t, &database.RedisClient{Client: client})

	redisMock.ExpectDel(CacheKey("tpl-1")).SetVal(1)
	require.NoError(t, store.Invalidate(context.Background(), "tpl-1"))

	redisMock.ExpectDel(CacheKey("tpl-2")).SetErr(errors.New("READONLY"))
	err := store.Invalidate(context.Background(), "tpl-2")

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeCacheUnavailable, stdErr.Code)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestStore_GetRecord(t *testing.T) {
	store, mock := setupStore(t, nil)
	completedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(selectRecordQuery)).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_id", "status", "form_data", "completed_by", "completed_at"}).
			AddRow("rec-1", "tpl-1", "completed", []byte(`{"temp":3.2}`), int64(42), completedAt))

	rec, err := store.GetRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.True(t, rec.IsCompleted())
	assert.JSONEq(t, `{"temp":3.2}`, string(rec.FormData))
	require.NotNil(t, rec.CompletedBy)
	assert.Equal(t, int64(42), *rec.CompletedBy)
	assert.Equal(t, completedAt, *rec.CompletedAt)

	formRec := rec.ToForm()
	assert.Equal(t, "rec-1", formRec.ID)
	assert.Equal(t, []byte(`{"temp":3.2}`), formRec.FormData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetRecord_Pending(t *testing.T) {
	store, mock := setupStore(t, nil)

	mock.ExpectQuery(regexp.QuoteMeta(selectRecordQuery)).
		WithArgs("rec-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_id", "status", "form_data", "completed_by", "completed_at"}).
			AddRow("rec-2", "tpl-1", "pending", nil, nil, nil))

	rec, err := store.GetRecord(context.Background(), "rec-2")
	require.NoError(t, err)
	assert.False(t, rec.IsCompleted())
	assert.Nil(t, rec.FormData)
	assert.Nil(t, rec.CompletedBy)
	assert.Nil(t, rec.ToForm().FormData)
}

func TestStore_CompleteRecord(t *testing.T) {
	store, mock := setupStore(t, nil)
	uid := int64(42)
	completion := Completion{
		RecordID:    "rec-1",
		TemplateID:  "tpl-1",
		UserID:      &uid,
		Payload:     map[string]interface{}{"temp": 3.2},
		CompletedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appcc_records")).
		WithArgs("rec-1", "tpl-1", models.RecordStatusCompleted, sqlmock.AnyArg(), sqlmock.AnyArg(), completion.CompletedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_log")).
		WithArgs("appcc_record", "rec-1", "completed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.CompleteRecord(context.Background(), completion))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CompleteRecord_AlreadyCompleted(t *testing.T) {
	store, mock := setupStore(t, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appcc_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.CompleteRecord(context.Background(), Completion{RecordID: "rec-1", TemplateID: "tpl-1", Payload: map[string]interface{}{}})

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeRecordAlreadyComplete, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CompleteRecord_AuditFailureRollsBack(t *testing.T) {
	store, mock := setupStore(t, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appcc_records")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_log")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.CompleteRecord(context.Background(), Completion{RecordID: "rec-1", TemplateID: "tpl-1", Payload: map[string]interface{}{}})

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeDatabaseInsertFailed, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
