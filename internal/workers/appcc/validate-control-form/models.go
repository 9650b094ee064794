// internal/workers/appcc/validate-control-form/models.go
package validatecontrolform

import (
	"encoding/json"

	"appcc-workers/internal/forms"
)

// Input carries either a templateId or an inline formStructure. An inline
// structure wins when both are present.
type Input struct {
	TemplateID        string          `json:"templateId,omitempty"`
	FormStructure     json.RawMessage `json:"formStructure,omitempty"`
	Values            forms.Values    `json:"values"`
	SignatureComplete bool            `json:"signatureComplete"`
	IsReadOnly        bool            `json:"isReadOnly"`
}

type Output struct {
	IsValid    bool         `json:"isValid"`
	Errors     forms.Errors `json:"errors"`
	ErrorCount int          `json:"errorCount"`
}
