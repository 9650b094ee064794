// Package templates loads control templates and records and persists
// completed controls.
package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"appcc-workers/internal/common/database"
	apperrors "appcc-workers/internal/common/errors"
	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/models"
)

const (
	selectTemplateQuery = `SELECT id, name, frequency, required_role, form_structure FROM appcc_templates WHERE id = $1`

	selectRecordQuery = `SELECT id, template_id, status, form_data, completed_by, completed_at FROM appcc_records WHERE id = $1`

	upsertRecordQuery = `INSERT INTO appcc_records (id, template_id, status, form_data, completed_by, completed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    form_data = EXCLUDED.form_data,
    completed_by = EXCLUDED.completed_by,
    completed_at = EXCLUDED.completed_at,
    updated_at = NOW()
WHERE appcc_records.status <> 'completed'`

	insertAuditQuery = `INSERT INTO audit_log (entity_type, entity_id, action, actor_id, payload) VALUES ($1, $2, $3, $4, $5)`
)

// CacheKey returns the Redis key of a cached template.
func CacheKey(templateID string) string {
	return "appcc:template:" + templateID
}

// Store reads templates through a Redis cache and writes completed records.
type Store struct {
	db     *database.PostgresClient
	cache  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

// NewStore creates a Store. cache may be nil to disable caching.
func NewStore(db *database.PostgresClient, cache *database.RedisClient, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "template-store"}),
	}
}

// GetTemplate returns the template, preferring the cache. Cache failures
// are logged and fall through to Postgres. A cached entry that cannot be
// read is invalidated and refilled.
func (s *Store) GetTemplate(ctx context.Context, id string) (*models.ControlTemplate, error) {
	if s.cache != nil {
		var cached models.ControlTemplate
		err := s.cache.GetJSON(ctx, CacheKey(id), &cached)
		switch {
		case err == nil:
			return &cached, nil
		case !errors.Is(err, database.ErrCacheMiss):
			s.logger.Warn("template cache read failed", map[string]interface{}{
				"templateId": id,
				"error":      apperrors.NewCacheUnavailableError(err),
			})
			// an unreadable entry is dropped so the refill below replaces it
			if err := s.Invalidate(ctx, id); err != nil {
				s.logger.Debug("template cache invalidate failed", map[string]interface{}{
					"templateId": id,
					"error":      err,
				})
			}
		}
	}

	var t models.ControlTemplate
	err := s.db.QueryRow(ctx, selectTemplateQuery, id).
		Scan(&t.ID, &t.Name, &t.Frequency, &t.RequiredRole, &t.FormStructure)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewTemplateNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select appcc_templates", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, CacheKey(id), &t, s.ttl); err != nil {
			s.logger.Warn("template cache write failed", map[string]interface{}{
				"templateId": id,
				"error":      err,
			})
		}
	}
	return &t, nil
}

// Invalidate drops the cached copy of a template.
func (s *Store) Invalidate(ctx context.Context, id string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, CacheKey(id)); err != nil {
		return apperrors.NewCacheUnavailableError(err)
	}
	return nil
}

// GetRecord loads a control record.
func (s *Store) GetRecord(ctx context.Context, id string) (*models.ControlRecord, error) {
	var (
		r           models.ControlRecord
		formData    []byte
		completedBy sql.NullInt64
		completedAt sql.NullTime
	)
	err := s.db.QueryRow(ctx, selectRecordQuery, id).
		Scan(&r.ID, &r.TemplateID, &r.Status, &formData, &completedBy, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewRecordNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select appcc_records", err)
	}

	if len(formData) > 0 {
		r.FormData = json.RawMessage(formData)
	}
	if completedBy.Valid {
		r.CompletedBy = &completedBy.Int64
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return &r, nil
}

// Completion is a signed-off control ready to be stored.
type Completion struct {
	RecordID    string
	TemplateID  string
	UserID      *int64
	Payload     map[string]interface{}
	CompletedAt time.Time
}

// CompleteRecord upserts the record as completed and writes its audit entry
// in one transaction. A record that is already completed is left untouched
// and reported as RECORD_ALREADY_COMPLETED.
func (s *Store) CompleteRecord(ctx context.Context, c Completion) error {
	payload, err := json.Marshal(c.Payload)
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}

	var actor sql.NullInt64
	if c.UserID != nil {
		actor = sql.NullInt64{Int64: *c.UserID, Valid: true}
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, upsertRecordQuery,
			c.RecordID, c.TemplateID, models.RecordStatusCompleted, payload, actor, c.CompletedAt)
		if err != nil {
			return apperrors.NewDatabaseInsertFailedError(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperrors.NewRecordAlreadyCompletedError(c.RecordID)
		}

		if _, err := tx.ExecContext(ctx, insertAuditQuery,
			"appcc_record", c.RecordID, "completed", actor, payload); err != nil {
			return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("audit_log: %w", err))
		}
		return nil
	})
}
