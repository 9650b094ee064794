// internal/models/control.go
package models

import (
	"encoding/json"
	"time"

	"appcc-workers/internal/forms"
)

// Record statuses stored in appcc_records.status.
const (
	RecordStatusPending   = "pending"
	RecordStatusCompleted = "completed"
)

// ControlTemplate is a row of appcc_templates.
type ControlTemplate struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Frequency     string `json:"frequency"`
	RequiredRole  string `json:"requiredRole"`
	FormStructure string `json:"formStructure"`
}

// ToForm converts the row to the form engine's template.
func (t *ControlTemplate) ToForm() forms.Template {
	return forms.Template{
		ID:            t.ID,
		Name:          t.Name,
		Frequency:     t.Frequency,
		RequiredRole:  t.RequiredRole,
		FormStructure: t.FormStructure,
	}
}

// ControlRecord is a row of appcc_records.
type ControlRecord struct {
	ID          string          `json:"id"`
	TemplateID  string          `json:"templateId"`
	Status      string          `json:"status"`
	FormData    json.RawMessage `json:"formData,omitempty"`
	CompletedBy *int64          `json:"completedBy,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// ToForm converts the row to the form engine's prior record.
func (r *ControlRecord) ToForm() *forms.Record {
	rec := &forms.Record{ID: r.ID, Status: r.Status}
	if len(r.FormData) > 0 {
		rec.FormData = []byte(r.FormData)
	}
	return rec
}

// IsCompleted reports whether the record has already been signed off.
func (r *ControlRecord) IsCompleted() bool {
	return forms.IsCompletedStatus(r.Status)
}

// Contact holds the notification channels of a user.
type Contact struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

// ControlDocument is the search index representation of a completed control.
type ControlDocument struct {
	RecordID     string                 `json:"recordId"`
	TemplateID   string                 `json:"templateId"`
	TemplateName string                 `json:"templateName,omitempty"`
	Status       string                 `json:"status"`
	Responsible  string                 `json:"responsible,omitempty"`
	SignedBy     string                 `json:"signedBy,omitempty"`
	CompletedAt  string                 `json:"completedAt,omitempty"`
	FormData     map[string]interface{} `json:"formData"`
	IndexedAt    string                 `json:"indexedAt"`
}
