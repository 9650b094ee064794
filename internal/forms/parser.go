package forms

import (
	"encoding/json"
	"fmt"

	"appcc-workers/internal/common/validation"
)

// ParseStructure decodes and checks a serialized form structure. Any
// failure is returned as *SchemaError.
func ParseStructure(raw string) (*FormStructure, error) {
	shape, err := validation.ValidateFormStructure([]byte(raw))
	if err != nil {
		return nil, &SchemaError{Cause: err}
	}
	if !shape.Valid {
		problems := make([]string, len(shape.Errors))
		for i, e := range shape.Errors {
			problems[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
		}
		return nil, &SchemaError{Problems: problems}
	}

	var structure FormStructure
	if err := json.Unmarshal([]byte(raw), &structure); err != nil {
		return nil, &SchemaError{Cause: err}
	}

	if problems := checkStructure(&structure); len(problems) > 0 {
		return nil, &SchemaError{Problems: problems}
	}
	return &structure, nil
}

// ParseStructureJSON accepts a structure embedded in a JSON document either
// as an object or as a serialized string.
func ParseStructureJSON(raw json.RawMessage) (*FormStructure, error) {
	return ParseStructure(StructureSource(raw))
}

// StructureSource returns the serialized structure held by raw, unwrapping
// a JSON string when the structure was sent pre-encoded.
func StructureSource(raw json.RawMessage) string {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		return encoded
	}
	return string(raw)
}

// checkStructure reports every semantic problem in the schema.
func checkStructure(s *FormStructure) []string {
	var problems []string
	seen := map[string]struct{}{}

	for _, f := range s.Fields() {
		switch {
		case f.ID == "":
			problems = append(problems, fmt.Sprintf("field %q: empty id", f.Label))
			continue
		case IsReservedKey(f.ID):
			problems = append(problems, fmt.Sprintf("field %q: id is reserved", f.ID))
		}
		if _, dup := seen[f.ID]; dup {
			problems = append(problems, fmt.Sprintf("field %q: duplicate id", f.ID))
		}
		seen[f.ID] = struct{}{}

		if !f.Type.Valid() {
			problems = append(problems, fmt.Sprintf("field %q: unknown type %q", f.ID, f.Type))
			continue
		}

		if (f.Type == FieldSelect || f.Type == FieldRadio) && len(f.Options) == 0 {
			problems = append(problems, fmt.Sprintf("field %q: %s requires options", f.ID, f.Type))
		}
		if r := f.TemperatureRange; r != nil && r.Min > r.Max {
			problems = append(problems, fmt.Sprintf("field %q: temperature min %s above max %s",
				f.ID, formatNumber(r.Min), formatNumber(r.Max)))
		}
		if v := f.Validations; v != nil && v.Pattern != nil {
			if _, err := compileFullMatch(*v.Pattern); err != nil {
				problems = append(problems, fmt.Sprintf("field %q: invalid pattern: %v", f.ID, err))
			}
		}
	}
	return problems
}
