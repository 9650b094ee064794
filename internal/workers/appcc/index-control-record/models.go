// internal/workers/appcc/index-control-record/models.go
package indexcontrolrecord

// Input is the output of submit-control-record.
type Input struct {
	RecordID     string                 `json:"recordId"`
	TemplateID   string                 `json:"templateId"`
	TemplateName string                 `json:"templateName"`
	Status       string                 `json:"status"`
	CompletedAt  string                 `json:"completedAt"`
	Payload      map[string]interface{} `json:"payload"`
}

type Output struct {
	Indexed    bool   `json:"indexed"`
	Index      string `json:"index"`
	DocumentID string `json:"documentId"`
	Result     string `json:"result"`
}
