// Package forms interprets APPCC control templates: it parses the form
// structure, seeds initial values, renders typed controls, validates the
// captured values and builds the signed submission payload.
package forms

// FieldType is the closed set of control field types.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldTextarea    FieldType = "textarea"
	FieldSelect      FieldType = "select"
	FieldCheckbox    FieldType = "checkbox"
	FieldRadio       FieldType = "radio"
	FieldTemperature FieldType = "temperature"
	FieldDate        FieldType = "date"
	FieldTime        FieldType = "time"
	FieldDatetime    FieldType = "datetime"
	FieldSignature   FieldType = "signature"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	_, ok := kindOf(t)
	return ok
}

// Reserved value keys. A template field may not use any of them as its id.
const (
	KeyDate          = "date"
	KeyResponsible   = "responsible"
	KeyResponsibleID = "responsibleId"
	KeySignature     = "signature"
	KeyCompletedAt   = "completedAt"
)

var reservedKeys = map[string]struct{}{
	KeyDate:          {},
	KeyResponsible:   {},
	KeyResponsibleID: {},
	KeySignature:     {},
	KeyCompletedAt:   {},
}

// IsReservedKey reports whether key is owned by the form engine.
func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

type FieldOption struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// ValidationRules are optional per-field constraints. Nil means "not set".
type ValidationRules struct {
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern   *string  `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
}

type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "C"
	Fahrenheit TemperatureUnit = "F"
)

// TemperatureRange is the acceptable band for a temperature reading.
type TemperatureRange struct {
	Min  float64         `json:"min" yaml:"min"`
	Max  float64         `json:"max" yaml:"max"`
	Unit TemperatureUnit `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// UnitOrDefault returns the unit letter, defaulting to Celsius.
func (r TemperatureRange) UnitOrDefault() TemperatureUnit {
	if r.Unit == "" {
		return Celsius
	}
	return r.Unit
}

// Symbol returns the display suffix, e.g. "°C".
func (r TemperatureRange) Symbol() string {
	return "°" + string(r.UnitOrDefault())
}

type TemplateField struct {
	ID               string            `json:"id" yaml:"id"`
	Type             FieldType         `json:"type" yaml:"type"`
	Label            string            `json:"label" yaml:"label"`
	Description      string            `json:"description,omitempty" yaml:"description,omitempty"`
	Required         bool              `json:"required" yaml:"required"`
	Placeholder      string            `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options          []FieldOption     `json:"options,omitempty" yaml:"options,omitempty"`
	Validations      *ValidationRules  `json:"validations,omitempty" yaml:"validations,omitempty"`
	TemperatureRange *TemperatureRange `json:"temperatureRange,omitempty" yaml:"temperatureRange,omitempty"`
}

type TemplateSection struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []TemplateField `json:"fields" yaml:"fields"`
}

// FormStructure is the root of a control template schema.
type FormStructure struct {
	Sections []TemplateSection `json:"sections" yaml:"sections"`
}

// Fields returns every field in schema order.
func (s *FormStructure) Fields() []TemplateField {
	var out []TemplateField
	for _, sec := range s.Sections {
		out = append(out, sec.Fields...)
	}
	return out
}

// Field looks up a field by id.
func (s *FormStructure) Field(id string) (TemplateField, bool) {
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			if f.ID == id {
				return f, true
			}
		}
	}
	return TemplateField{}, false
}

// Values maps field ids and reserved keys to captured values.
type Values map[string]any

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Errors maps field ids (or "signature") to a user-facing message.
type Errors map[string]string

func (e Errors) Clone() Errors {
	out := make(Errors, len(e))
	for k, msg := range e {
		out[k] = msg
	}
	return out
}

// Signature is the attestation attached to a submitted control.
type Signature struct {
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	UserID    *int64 `json:"userId,omitempty"`
}

// User is the person filling in the control.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Record is a scheduled or completed instance of a template.
// FormData holds a JSON string, raw bytes or a decoded object.
type Record struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	FormData any    `json:"formData,omitempty"`
}

// Template is a persisted schema plus its scheduling metadata.
type Template struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Frequency     string `json:"frequency,omitempty"`
	RequiredRole  string `json:"requiredRole,omitempty"`
	FormStructure string `json:"formStructure"`
}
