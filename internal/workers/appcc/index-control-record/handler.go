// internal/workers/appcc/index-control-record/handler.go
package indexcontrolrecord

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "appcc-workers/internal/common/errors"
	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/common/observability"
	"appcc-workers/internal/forms"
	"appcc-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "index-control-record"
)

// Indexer writes one document to a search index.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) (string, error)
}

type Handler struct {
	config     *Config
	indexer    Indexer
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(config *Config, indexer Indexer, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		indexer:    indexer,
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

// Execute indexes the completed control under its record id. Re-indexing
// the same record overwrites the previous document.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.RecordID == "" {
		return nil, apperrors.NewParseError("recordId is required")
	}

	doc := BuildDocument(input, h.now())

	result, err := h.indexer.IndexDocument(ctx, h.config.Index, input.RecordID, doc)
	if err != nil {
		return nil, apperrors.NewSearchIndexFailedError(h.config.Index, err)
	}

	h.logger.Info("control indexed", map[string]interface{}{
		"recordId": input.RecordID,
		"index":    h.config.Index,
		"result":   result,
	})

	return &Output{
		Indexed:    true,
		Index:      h.config.Index,
		DocumentID: input.RecordID,
		Result:     result,
	}, nil
}

// BuildDocument flattens the submission payload into the search document.
func BuildDocument(input *Input, now time.Time) *models.ControlDocument {
	payload := input.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	status := input.Status
	if status == "" {
		status = models.RecordStatusCompleted
	}

	completedAt := input.CompletedAt
	if completedAt == "" {
		completedAt, _ = payload[forms.KeyCompletedAt].(string)
	}

	responsible, _ := payload[forms.KeyResponsible].(string)

	return &models.ControlDocument{
		RecordID:     input.RecordID,
		TemplateID:   input.TemplateID,
		TemplateName: input.TemplateName,
		Status:       status,
		Responsible:  responsible,
		SignedBy:     signerName(payload[forms.KeySignature]),
		CompletedAt:  completedAt,
		FormData:     payload,
		IndexedAt:    forms.FormatTimestamp(now),
	}
}

func signerName(sig interface{}) string {
	switch s := sig.(type) {
	case map[string]interface{}:
		name, _ := s["name"].(string)
		return name
	case forms.Signature:
		return s.Name
	case *forms.Signature:
		if s != nil {
			return s.Name
		}
	}
	return ""
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
