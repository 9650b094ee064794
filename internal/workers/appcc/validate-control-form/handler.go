// internal/workers/appcc/validate-control-form/handler.go
package validatecontrolform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "appcc-workers/internal/common/errors"
	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/common/metrics"
	"appcc-workers/internal/common/observability"
	"appcc-workers/internal/forms"
	"appcc-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-control-form"
)

// TemplateSource resolves templates by id.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (*models.ControlTemplate, error)
}

type Handler struct {
	config     *Config
	templates  TemplateSource
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, templates TemplateSource, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		templates:  templates,
		obs:        obs,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
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

// Execute validates the values against the resolved structure. An invalid
// form is a normal outcome, reported through Output.IsValid.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	structure, err := h.resolveStructure(ctx, input)
	if err != nil {
		return nil, err
	}

	result := forms.Validate(structure, input.Values, input.SignatureComplete, input.IsReadOnly)

	metrics.RecordValidation(result.Valid, forms.ErrorFieldTypes(structure, result.Errors))
	h.obs.RecordFormValidation(ctx, input.TemplateID, result.Valid)

	if !result.Valid {
		h.logger.Info("control form incomplete", map[string]interface{}{
			"templateId": input.TemplateID,
			"errorCount": len(result.Errors),
		})
	}

	return &Output{
		IsValid:    result.Valid,
		Errors:     result.Errors,
		ErrorCount: len(result.Errors),
	}, nil
}

func (h *Handler) resolveStructure(ctx context.Context, input *Input) (*forms.FormStructure, error) {
	raw := input.FormStructure
	if len(raw) == 0 || string(raw) == "null" {
		if input.TemplateID == "" {
			return nil, apperrors.NewParseError("templateId or formStructure is required")
		}
		tmpl, err := h.templates.GetTemplate(ctx, input.TemplateID)
		if err != nil {
			return nil, err
		}
		structure, err := forms.ParseStructure(tmpl.FormStructure)
		if err != nil {
			return nil, apperrors.NewFormSchemaInvalidError(input.TemplateID, err)
		}
		return structure, nil
	}

	structure, err := forms.ParseStructureJSON(raw)
	if err != nil {
		return nil, apperrors.NewFormSchemaInvalidError(input.TemplateID, err)
	}
	return structure, nil
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
