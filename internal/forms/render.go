package forms

import (
	"time"
)

// Control is the view model of a single rendered field.
type Control struct {
	ID             string        `json:"id"`
	Type           FieldType     `json:"type"`
	Input          string        `json:"input"`
	Label          string        `json:"label"`
	RequiredMarker bool          `json:"requiredMarker"`
	Description    string        `json:"description,omitempty"`
	Placeholder    string        `json:"placeholder,omitempty"`
	Value          any           `json:"value"`
	Options        []FieldOption `json:"options,omitempty"`
	Rows           int           `json:"rows,omitempty"`
	Min            *float64      `json:"min,omitempty"`
	Max            *float64      `json:"max,omitempty"`
	Suffix         string        `json:"suffix,omitempty"`
	HelpText       string        `json:"helpText,omitempty"`
	Format         string        `json:"format,omitempty"`
	SignatureText  string        `json:"signatureText,omitempty"`
	Signed         bool          `json:"signed,omitempty"`
	Error          string        `json:"error,omitempty"`
	Disabled       bool          `json:"disabled"`
}

// RenderState carries the form-level flags that affect every control.
type RenderState struct {
	ReadOnly          bool
	Loading           bool
	SignatureComplete bool
	// Signature is the stored attestation shown in read-only mode.
	Signature any
	Location  *time.Location
}

type SectionView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Controls    []Control `json:"controls"`
}

// FormView is the complete render output for one form instance.
type FormView struct {
	Sections          []SectionView `json:"sections"`
	SignatureComplete bool          `json:"signatureComplete"`
	SignatureError    string        `json:"signatureError,omitempty"`
	ReadOnly          bool          `json:"readOnly"`
	Loading           bool          `json:"loading"`
}

const (
	textareaRows   = 3
	dateFormat     = "2006-01-02"
	timeFormat     = "15:04"
	datetimeFormat = "2006-01-02T15:04"
	signedAtFormat = "02/01/2006 15:04"
)

// RenderField builds the control for field from the current values and errors.
func RenderField(field TemplateField, values Values, errs Errors, st RenderState) Control {
	c := Control{
		ID:             field.ID,
		Type:           field.Type,
		Label:          field.Label,
		RequiredMarker: field.Required && !st.ReadOnly,
		Description:    field.Description,
		Placeholder:    field.Placeholder,
		Error:          errs[field.ID],
		Disabled:       st.Loading || st.ReadOnly,
	}

	render := renderText
	if k, ok := kindOf(field.Type); ok {
		render = kinds[k].render
	}
	render(&c, field, values[field.ID], st)
	return c
}

// RenderForm renders every section of structure.
func RenderForm(structure *FormStructure, values Values, errs Errors, st RenderState) FormView {
	view := FormView{
		Sections:          make([]SectionView, 0, len(structure.Sections)),
		SignatureComplete: st.SignatureComplete,
		SignatureError:    errs[KeySignature],
		ReadOnly:          st.ReadOnly,
		Loading:           st.Loading,
	}
	if st.Signature == nil {
		st.Signature = values[KeySignature]
	}

	for _, sec := range structure.Sections {
		sv := SectionView{
			ID:          sec.ID,
			Title:       sec.Title,
			Description: sec.Description,
			Controls:    make([]Control, 0, len(sec.Fields)),
		}
		for _, f := range sec.Fields {
			c := RenderField(f, values, errs, st)
			if f.Type == FieldSignature && c.Error == "" {
				c.Error = view.SignatureError
			}
			sv.Controls = append(sv.Controls, c)
		}
		view.Sections = append(view.Sections, sv)
	}
	return view
}

func renderText(c *Control, _ TemplateField, v any, _ RenderState) {
	c.Input = "text"
	c.Value = v
}

func renderNumber(c *Control, f TemplateField, v any, _ RenderState) {
	c.Input = "number"
	c.Value = v
	if f.Validations != nil {
		c.Min = f.Validations.Min
		c.Max = f.Validations.Max
	}
}

func renderTextarea(c *Control, _ TemplateField, v any, _ RenderState) {
	c.Input = "textarea"
	c.Rows = textareaRows
	c.Value = v
}

func renderSelect(c *Control, f TemplateField, v any, _ RenderState) {
	c.Input = "select"
	c.Options = f.Options
	c.Value = orEmpty(v)
}

func renderCheckbox(c *Control, _ TemplateField, v any, _ RenderState) {
	c.Input = "checkbox"
	c.Value = truthy(v)
}

func renderRadio(c *Control, f TemplateField, v any, _ RenderState) {
	c.Input = "radio"
	c.Options = f.Options
	c.Value = orEmpty(v)
}

func renderTemperature(c *Control, f TemplateField, v any, _ RenderState) {
	c.Input = "number"
	c.Value = v
	r := TemperatureRange{}
	if f.TemperatureRange != nil {
		r = *f.TemperatureRange
		c.HelpText = msgTemperatureHelp(r)
	}
	c.Suffix = r.Symbol()
}

func renderDate(c *Control, _ TemplateField, v any, _ RenderState) {
	c.Input = "date"
	c.Format = dateFormat
	c.Value = v
}

func renderTime(c *Control, _ TemplateField, v any, _ RenderState) {
	c.Input = "time"
	c.Format = timeFormat
	c.Value = v
}

func renderDatetime(c *Control, _ TemplateField, v any, _ RenderState) {
	c.Input = "datetime-local"
	c.Format = datetimeFormat
	c.Value = v
}

func renderSignature(c *Control, _ TemplateField, v any, st RenderState) {
	c.Input = "signature"
	c.Value = v
	c.Signed = st.SignatureComplete

	switch {
	case st.ReadOnly && st.Signature != nil:
		name, when := describeSignature(st.Signature, st.Location)
		c.SignatureText = msgSignedBy(name, when)
	case st.SignatureComplete:
		c.SignatureText = MsgSignatureCompleted
	default:
		c.SignatureText = MsgSignaturePending
	}
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// describeSignature extracts the signer and a localised timestamp from a
// stored signature, which may be a Signature or its decoded JSON object.
func describeSignature(sig any, loc *time.Location) (string, string) {
	var name, ts string
	switch s := sig.(type) {
	case Signature:
		name, ts = s.Name, s.Timestamp
	case *Signature:
		if s != nil {
			name, ts = s.Name, s.Timestamp
		}
	case map[string]any:
		name, _ = s["name"].(string)
		ts, _ = s["timestamp"].(string)
	}
	if name == "" {
		name = DefaultUserName
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return name, ts
	}
	if loc != nil {
		t = t.In(loc)
	}
	return name, t.Format(signedAtFormat)
}
