// internal/workers/appcc/submit-control-record/handler.go
package submitcontrolrecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "appcc-workers/internal/common/errors"
	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/common/metrics"
	"appcc-workers/internal/common/observability"
	"appcc-workers/internal/common/templates"
	"appcc-workers/internal/forms"
	"appcc-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "submit-control-record"
)

// RecordStore is the persistence the submit flow needs.
type RecordStore interface {
	GetTemplate(ctx context.Context, id string) (*models.ControlTemplate, error)
	GetRecord(ctx context.Context, id string) (*models.ControlRecord, error)
	CompleteRecord(ctx context.Context, c templates.Completion) error
}

type Handler struct {
	config     *Config
	store      RecordStore
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(config *Config, store RecordStore, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		store:      store,
		obs:        obs,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
		now:        time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartJobSpan(ctx, TaskType, job.Key)
	defer span.End()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		parseErr := apperrors.NewParseError(fmt.Sprintf("parse input: %v", err))
		observability.FailSpan(span, parseErr)
		h.errHandler.HandleJobError(ctx, client, job, parseErr)
		h.obs.RecordJob(ctx, TaskType, "failed", time.Since(start))
		return parseErr
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		observability.FailSpan(span, err)
		h.errHandler.HandleJobError(ctx, client, job, err)
		h.obs.RecordJob(ctx, TaskType, "failed", time.Since(start))
		return err
	}

	h.completeJob(ctx, client, job, output)
	h.obs.RecordJob(ctx, TaskType, "completed", time.Since(start))
	return nil
}

// Execute runs one control through a form session and stores it as completed.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.TemplateID == "" {
		return nil, apperrors.NewParseError("templateId is required")
	}

	tmpl, err := h.store.GetTemplate(ctx, input.TemplateID)
	if err != nil {
		return nil, err
	}

	recordID := input.RecordID
	var prior *forms.Record
	if recordID == "" {
		recordID = uuid.New().String()
	} else {
		rec, err := h.loadRecord(ctx, recordID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			if rec.TemplateID != tmpl.ID {
				return nil, apperrors.NewRecordDataInvalidError(recordID,
					fmt.Errorf("record belongs to template %q", rec.TemplateID))
			}
			if rec.IsCompleted() {
				return nil, apperrors.NewRecordAlreadyCompletedError(recordID)
			}
			prior = rec.ToForm()
		}
	}

	session, err := forms.NewSession(tmpl.ToForm(), prior,
		forms.WithUser(input.User),
		forms.WithClock(h.now),
		forms.WithLocation(h.config.Location),
		forms.WithDefaultUserName(h.config.DefaultUserName),
		forms.WithLogger(h.logger),
		forms.WithNotifier(forms.LogNotifier{Logger: h.logger}),
	)
	if err != nil {
		return nil, apperrors.NewFormSchemaInvalidError(tmpl.ID, err)
	}

	for id, v := range input.Values {
		if id == forms.KeySignature || id == forms.KeyCompletedAt {
			continue
		}
		session.SetValue(id, v)
	}
	if input.Signed {
		session.Sign()
	}

	var completedAt time.Time
	payload, err := session.Submit(func(p forms.Values) error {
		completedAt = parseCompletedAt(p, h.now)
		var userID *int64
		if input.User != nil {
			id := input.User.ID
			userID = &id
		}
		return h.store.CompleteRecord(ctx, templates.Completion{
			RecordID:    recordID,
			TemplateID:  tmpl.ID,
			UserID:      userID,
			Payload:     p,
			CompletedAt: completedAt,
		})
	})

	structure := session.Structure()
	var vErr *forms.ValidationFailedError
	switch {
	case errors.As(err, &vErr):
		metrics.RecordValidation(false, forms.ErrorFieldTypes(structure, vErr.Errors))
		h.obs.RecordFormValidation(ctx, tmpl.ID, false)
		return nil, apperrors.NewFormValidationFailedError(vErr.Errors)
	case err != nil:
		return nil, err
	}

	metrics.RecordValidation(true, nil)
	metrics.FormSubmissions.Inc()
	h.obs.RecordFormValidation(ctx, tmpl.ID, true)

	h.logger.Info("control completed", map[string]interface{}{
		"recordId":   recordID,
		"templateId": tmpl.ID,
	})

	return &Output{
		RecordID:     recordID,
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
		Status:       models.RecordStatusCompleted,
		CompletedAt:  forms.FormatTimestamp(completedAt),
		Payload:      payload,
	}, nil
}

// loadRecord returns nil when the record does not exist yet.
func (h *Handler) loadRecord(ctx context.Context, id string) (*models.ControlRecord, error) {
	rec, err := h.store.GetRecord(ctx, id)
	if err == nil {
		return rec, nil
	}
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) && stdErr.Code == apperrors.ErrCodeRecordNotFound {
		return nil, nil
	}
	return nil, err
}

func parseCompletedAt(p forms.Values, now func() time.Time) time.Time {
	if s, ok := p[forms.KeyCompletedAt].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return now().UTC()
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.WithError(err).Error("failed to create complete job command", nil)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.WithError(err).Error("failed to send complete job command", nil)
	}
}
