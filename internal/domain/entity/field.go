package entity

// Field names an indexed text field.
type Field string

// Indexed text fields.
const (
	FieldTitleEN Field = "title_en"
	FieldTitleZH Field = "title_zh"
	FieldBodyEN  Field = "body_en"
	FieldBodyZH  Field = "body_zh"
	FieldTags    Field = "tags"
)

// Locale tags used by the normalizer.
const (
	LocaleEN  = "en"
	LocaleZH  = "zh"
	LocaleUnd = "und"
)

// AllFields lists the indexed fields in a fixed order.
var AllFields = []Field{FieldTitleEN, FieldTitleZH, FieldBodyEN, FieldBodyZH, FieldTags}

// Locale returns the locale the field's text is written in.
func (f Field) Locale() string {
	switch f {
	case FieldTitleEN, FieldBodyEN:
		return LocaleEN
	case FieldTitleZH, FieldBodyZH:
		return LocaleZH
	default:
		return LocaleUnd
	}
}

// FieldText is one indexed field's raw text.
type FieldText struct {
	Field Field
	Text  string
}

// Texts returns the non-empty indexed fields. Each tag is its own FieldTags entry.
func (e Entity) Texts() []FieldText {
	out := make([]FieldText, 0, 4+len(e.tags))
	for _, ft := range []FieldText{
		{FieldTitleEN, e.titleEN},
		{FieldTitleZH, e.titleZH},
		{FieldBodyEN, e.bodyEN},
		{FieldBodyZH, e.bodyZH},
	} {
		if ft.Text != "" {
			out = append(out, ft)
		}
	}
	for _, t := range e.tags {
		out = append(out, FieldText{Field: FieldTags, Text: t})
	}
	return out
}
