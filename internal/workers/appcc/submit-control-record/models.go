// internal/workers/appcc/submit-control-record/models.go
package submitcontrolrecord

import "appcc-workers/internal/forms"

type Input struct {
	TemplateID string       `json:"templateId"`
	RecordID   string       `json:"recordId,omitempty"`
	User       *forms.User  `json:"user,omitempty"`
	Values     forms.Values `json:"values"`
	Signed     bool         `json:"signed"`
}

type Output struct {
	RecordID     string       `json:"recordId"`
	TemplateID   string       `json:"templateId"`
	TemplateName string       `json:"templateName"`
	Status       string       `json:"status"`
	CompletedAt  string       `json:"completedAt"`
	Payload      forms.Values `json:"payload"`
}
