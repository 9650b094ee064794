package database

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"appcc-workers/internal/common/config"
	apperrors "appcc-workers/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Postgres
// ==========================

func TestPostgres_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS appcc_templates")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	client := &PostgresClient{DB: db}
	require.NoError(t, client.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	client := &PostgresClient{DB: db}
	err = client.Ping(context.Background())

	stdErr := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeDatabaseConnectionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WithTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE appcc_records").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		client := &PostgresClient{DB: db}
		err = client.WithTx(context.Background(), func(tx *sql.Tx) error {
			_, err := tx.Exec("UPDATE appcc_records SET status = 'completed'")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		client := &PostgresClient{DB: db}
		err = client.WithTx(context.Background(), func(tx *sql.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// ==========================
// Redis
// ==========================

func setupRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedis_JSONRoundTrip(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	type cached struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, client.SetJSON(ctx, "appcc:template:t1", cached{ID: "t1", Name: "Cámara 1"}, time.Minute))
	assert.True(t, mr.Exists("appcc:template:t1"))
	assert.Equal(t, time.Minute, mr.TTL("appcc:template:t1"))

	var got cached
	require.NoError(t, client.GetJSON(ctx, "appcc:template:t1", &got))
	assert.Equal(t, "Cámara 1", got.Name)

	require.NoError(t, client.Del(ctx, "appcc:template:t1"))
	assert.ErrorIs(t, client.GetJSON(ctx, "appcc:template:t1", &got), ErrCacheMiss)
}

// ==========================
// Elasticsearch
// ==========================

func newTestES(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearch_IndexDocument(t *testing.T) {
	var gotPath, gotMethod string
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_index":"appcc-records","_id":"rec-1","result":"created"}`))
	})

	result, err := client.IndexDocument(context.Background(), "appcc-records", "rec-1", map[string]interface{}{"status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, "created", result)
	assert.Equal(t, "/appcc-records/_doc/rec-1", gotPath)
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestElasticsearch_IndexDocumentError(t *testing.T) {
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
	})

	_, err := client.IndexDocument(context.Background(), "appcc-records", "rec-1", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestElasticsearch_Ping(t *testing.T) {
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, client.Ping())
}
