// internal/workers/appcc/notify-control-completed/models.go
package notifycontrolcompleted

type Input struct {
	RecordID     string                 `json:"recordId"`
	TemplateID   string                 `json:"templateId"`
	TemplateName string                 `json:"templateName"`
	RecipientID  int64                  `json:"recipientId,omitempty"` // defaults to payload.responsibleId
	Priority     string                 `json:"priority,omitempty"`
	CompletedAt  string                 `json:"completedAt,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"` // ISO 8601
}

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

const PriorityHigh = "high"
