package forms

// fieldKind indexes the per-type dispatch table.
type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindTextarea
	kindSelect
	kindCheckbox
	kindRadio
	kindTemperature
	kindDate
	kindTime
	kindDatetime
	kindSignature
	fieldKindCount
)

// kindBehavior pairs the renderer and the type-specific validator.
// check returns "" when the value passes.
type kindBehavior struct {
	fieldType FieldType
	render    func(c *Control, f TemplateField, v any, st RenderState)
	check     func(f TemplateField, v any) string
}

var kinds = [...]kindBehavior{
	kindText:        {FieldText, renderText, checkText},
	kindNumber:      {FieldNumber, renderNumber, checkNumber},
	kindTextarea:    {FieldTextarea, renderTextarea, checkPresence},
	kindSelect:      {FieldSelect, renderSelect, checkPresence},
	kindCheckbox:    {FieldCheckbox, renderCheckbox, checkPresence},
	kindRadio:       {FieldRadio, renderRadio, checkPresence},
	kindTemperature: {FieldTemperature, renderTemperature, checkTemperature},
	kindDate:        {FieldDate, renderDate, checkPresence},
	kindTime:        {FieldTime, renderTime, checkPresence},
	kindDatetime:    {FieldDatetime, renderDatetime, checkPresence},
	kindSignature:   {FieldSignature, renderSignature, checkPresence},
}

// Adding a kind without a table entry fails to compile.
var _ = [1]struct{}{}[len(kinds)-int(fieldKindCount)]

var kindByType = func() map[FieldType]fieldKind {
	m := make(map[FieldType]fieldKind, len(kinds))
	for k, b := range kinds {
		m[b.fieldType] = fieldKind(k)
	}
	return m
}()

func kindOf(t FieldType) (fieldKind, bool) {
	k, ok := kindByType[t]
	return k, ok
}

// FieldTypes lists every supported field type in declaration order.
func FieldTypes() []FieldType {
	out := make([]FieldType, len(kinds))
	for i, b := range kinds {
		out[i] = b.fieldType
	}
	return out
}
