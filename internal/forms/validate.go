package forms

import (
	"math"
	"regexp"
	"unicode/utf8"
)

// Result is the outcome of one validation pass.
type Result struct {
	Valid  bool   `json:"valid"`
	Errors Errors `json:"errors"`
}

// Validate checks every field in schema order and never stops early. When
// several rules fail on one field the last one evaluated wins. Unless the
// form is read-only, a missing signature is reported under "signature".
func Validate(structure *FormStructure, values Values, signatureComplete, readOnly bool) Result {
	errs := Errors{}

	for _, field := range structure.Fields() {
		value := values[field.ID]

		if isEmpty(value) {
			if field.Required {
				errs[field.ID] = MsgRequired
			}
			continue
		}

		check := checkPresence
		if k, ok := kindOf(field.Type); ok {
			check = kinds[k].check
		}
		if msg := check(field, value); msg != "" {
			errs[field.ID] = msg
		}
	}

	if !signatureComplete && !readOnly {
		errs[KeySignature] = MsgSignatureRequired
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

func checkPresence(TemplateField, any) string { return "" }

func checkNumber(f TemplateField, v any) string {
	if f.Validations == nil {
		return ""
	}
	n := parseNumber(v)
	msg := ""
	if f.Validations.Min != nil && n < *f.Validations.Min {
		msg = msgMin(*f.Validations.Min)
	}
	if f.Validations.Max != nil && n > *f.Validations.Max {
		msg = msgMax(*f.Validations.Max)
	}
	return msg
}

func checkTemperature(f TemplateField, v any) string {
	if f.TemperatureRange == nil {
		return ""
	}
	t := parseNumber(v)
	if math.IsNaN(t) {
		return ""
	}
	if t < f.TemperatureRange.Min || t > f.TemperatureRange.Max {
		return msgTemperatureRange(*f.TemperatureRange)
	}
	return ""
}

func checkText(f TemplateField, v any) string {
	rules := f.Validations
	if rules == nil {
		return ""
	}
	s, ok := textOf(v)
	if !ok {
		return ""
	}

	msg := ""
	// Length rules count characters of typed text only.
	if _, isString := v.(string); isString {
		length := utf8.RuneCountInString(s)
		if rules.MinLength != nil && length < *rules.MinLength {
			msg = msgMinLength(*rules.MinLength)
		}
		if rules.MaxLength != nil && length > *rules.MaxLength {
			msg = msgMaxLength(*rules.MaxLength)
		}
	}
	if rules.Pattern != nil {
		re, err := compileFullMatch(*rules.Pattern)
		if err == nil && !re.MatchString(s) {
			msg = MsgInvalidFormat
		}
	}
	return msg
}

// compileFullMatch anchors pattern so it must match the whole value.
func compileFullMatch(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

// ErrorFieldTypes returns the field type behind each error key, with
// "signature" for the signature gate. Order follows the schema.
func ErrorFieldTypes(structure *FormStructure, errs Errors) []string {
	var out []string
	for _, f := range structure.Fields() {
		if _, ok := errs[f.ID]; ok {
			out = append(out, string(f.Type))
		}
	}
	if _, ok := errs[KeySignature]; ok {
		out = append(out, KeySignature)
	}
	return out
}
