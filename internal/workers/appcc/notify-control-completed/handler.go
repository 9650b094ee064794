// internal/workers/appcc/notify-control-completed/handler.go
package notifycontrolcompleted

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "appcc-workers/internal/common/errors"
	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/common/observability"
	"appcc-workers/internal/forms"
	"appcc-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "notify-control-completed"
)

const (
	contactQuery = `SELECT email, phone FROM users WHERE id = $1`

	subjectTemplate = "Control APPCC completado: {{templateName}}"
	bodyTemplate    = "El control \"{{templateName}}\" (registro {{recordId}}) fue firmado por {{completedBy}} el {{completedAt}}."
	smsTemplate     = "APPCC: {{templateName}} completado por {{completedBy}} ({{completedAt}})"

	displayFormat = "02/01/2006 15:04"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config     *Config
	db         *sql.DB
	sesClient  SESService
	snsClient  SNSService
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(config *Config, db *sql.DB, sesClient SESService, snsClient SNSService, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		db:         db,
		sesClient:  sesClient,
		snsClient:  snsClient,
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

// Execute notifies the responsible user that a control was signed off.
// An email failure is returned for retry; an SMS failure after the email
// went out is reported as StatusFailed so the email is not sent twice.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	notificationID := uuid.New().String()
	sentAt := forms.FormatTimestamp(h.now())

	recipientID := input.RecipientID
	if recipientID == 0 {
		recipientID = responsibleID(input.Payload)
	}

	contact, err := h.getRecipientContact(ctx, recipientID)
	if errors.Is(err, sql.ErrNoRows) {
		h.logger.Warn("recipient not found", map[string]interface{}{
			"recipientId": recipientID,
			"recordId":    input.RecordID,
		})
		return &Output{NotificationID: notificationID, Status: StatusDisabled, SentAt: sentAt}, nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select users", err)
	}

	data := h.templateData(input)
	subject := renderTemplate(subjectTemplate, data)
	body := renderTemplate(bodyTemplate, data)

	emailSent := false
	smsSent := false

	if h.config.EmailEnabled && contact.Email != "" {
		if err := h.sendEmail(ctx, contact.Email, subject, body); err != nil {
			return nil, apperrors.NewNotificationSendFailedError("email", err)
		}
		emailSent = true
	}

	// SMS only for high priority controls
	if h.config.SMSEnabled && contact.Phone != "" && input.Priority == PriorityHigh {
		if err := h.sendSMS(ctx, contact.Phone, renderTemplate(smsTemplate, data)); err != nil {
			if !emailSent {
				return nil, apperrors.NewNotificationSendFailedError("sms", err)
			}
			h.logger.Error("SMS send failed", map[string]interface{}{
				"error":       err,
				"recipientId": recipientID,
			})
			return &Output{NotificationID: notificationID, Status: StatusFailed, SentAt: sentAt}, nil
		}
		smsSent = true
	}

	status := StatusDisabled
	if emailSent || smsSent {
		status = StatusSent
	}

	h.logger.Info("notification processed", map[string]interface{}{
		"recordId":  input.RecordID,
		"status":    status,
		"emailSent": emailSent,
		"smsSent":   smsSent,
	})

	return &Output{
		NotificationID: notificationID,
		Status:         status,
		SentAt:         sentAt,
	}, nil
}

func (h *Handler) getRecipientContact(ctx context.Context, userID int64) (*models.Contact, error) {
	var email, phone sql.NullString
	if err := h.db.QueryRowContext(ctx, contactQuery, userID).Scan(&email, &phone); err != nil {
		return nil, err
	}
	return &models.Contact{UserID: userID, Email: email.String, Phone: phone.String}, nil
}

func (h *Handler) templateData(input *Input) map[string]interface{} {
	completedAt := input.CompletedAt
	if completedAt == "" {
		completedAt, _ = input.Payload[forms.KeyCompletedAt].(string)
	}
	if t, err := time.Parse(time.RFC3339Nano, completedAt); err == nil {
		completedAt = t.In(h.config.Location).Format(displayFormat)
	}

	completedBy := forms.DefaultUserName
	if sig, ok := input.Payload[forms.KeySignature].(map[string]interface{}); ok {
		if name, ok := sig["name"].(string); ok && name != "" {
			completedBy = name
		}
	}

	return map[string]interface{}{
		"recordId":     input.RecordID,
		"templateId":   input.TemplateID,
		"templateName": input.TemplateName,
		"completedBy":  completedBy,
		"completedAt":  completedAt,
	}
}

func responsibleID(payload map[string]interface{}) int64 {
	switch id := payload[forms.KeyResponsibleID].(type) {
	case float64:
		return int64(id)
	case int64:
		return id
	case int:
		return int64(id)
	}
	return 0
}

// renderTemplate replaces {{key}} placeholders; unknown placeholders render empty.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
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
