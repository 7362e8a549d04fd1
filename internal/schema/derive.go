package schema

import (
	"fmt"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
)

// MaxVisibleFields is the number of schema columns shown in record lists.
const MaxVisibleFields = 5

// DeriveFieldList decodes a raw schema in either the mapping or the sequence
// form into an ordered field list. Absent types default to text.
func DeriveFieldList(raw []byte) (model.Schema, error) {
	var s model.Schema
	if err := s.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	if s == nil {
		s = model.Schema{}
	}
	return s, nil
}

// VisibleFields returns the leading list-view columns of a schema.
func VisibleFields(s model.Schema) model.Schema {
	if len(s) > MaxVisibleFields {
		return s[:MaxVisibleFields]
	}
	return s
}

// Check reports the first field whose type has no kind.
func Check(s model.Schema) error {
	for _, f := range s {
		if _, err := KindOf(f.Type); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

// Parse converts operator input for the named field of s.
func Parse(s model.Schema, field, input string) (any, error) {
	def, ok := s.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", errs.ErrValidation, field)
	}
	k, err := KindOf(def.Type)
	if err != nil {
		return nil, err
	}
	return k.Parse(def, input)
}

// Display renders a stored value of def for list views. Unknown types
// render as their raw text so a bad schema never hides data.
func Display(def model.FieldDefinition, v any) string {
	k, err := KindOf(def.Type)
	if err != nil {
		return displayScalar(v)
	}
	return k.Display(v)
}
