// Package schema maps runtime field types onto a closed set of field kinds.
//
// Every model.FieldType has exactly one Kind. A Kind knows which widget edits
// the field, how operator input becomes a stored value, how a stored value is
// displayed in list views and how it is written as a multipart text part.
// Unknown types are an error, never a silent text fallback.
package schema

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
)

// Widget is the input control used to edit a field.
type Widget string

const (
	WidgetInput    Widget = "input"
	WidgetTextarea Widget = "textarea"
	WidgetToggle   Widget = "toggle"
	WidgetNumber   Widget = "number"
	WidgetDate     Widget = "date"
	WidgetFile     Widget = "file"
	WidgetRelation Widget = "relation"
	WidgetSelect   Widget = "select"
)

// displayLimit is the list-view truncation length.
const displayLimit = 50

// Kind is the behaviour of one field type. The interface is sealed.
type Kind interface {
	Type() model.FieldType
	Widget() Widget
	// Parse turns operator input into the stored value.
	Parse(def model.FieldDefinition, input string) (any, error)
	// Display renders a stored value for list views.
	Display(v any) string
	// Encode renders a non-nil stored value as a multipart text part.
	Encode(v any) string

	sealed()
}

// KindOf returns the kind for a field type. Wire aliases string, bool and
// editor are accepted; anything else outside the ten types is an error.
func KindOf(t model.FieldType) (Kind, error) {
	switch t {
	case model.FieldText, "string", "":
		return textKind{typ: model.FieldText}, nil
	case model.FieldEmail:
		return textKind{typ: model.FieldEmail}, nil
	case model.FieldURL:
		return textKind{typ: model.FieldURL}, nil
	case model.FieldNumber:
		return numberKind{}, nil
	case model.FieldBoolean, "bool":
		return booleanKind{}, nil
	case model.FieldDate:
		return dateKind{}, nil
	case model.FieldJSON, "editor":
		return jsonKind{}, nil
	case model.FieldFile:
		return fileKind{}, nil
	case model.FieldRelation:
		return relationKind{}, nil
	case model.FieldSelect:
		return selectKind{}, nil
	default:
		return nil, fmt.Errorf("%w %q", errs.ErrUnknownFieldType, t)
	}
}

func invalid(def model.FieldDefinition, format string, args ...any) error {
	return fmt.Errorf("%w: field %q: %s", errs.ErrValidation, def.Name, fmt.Sprintf(format, args...))
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) > displayLimit {
		return string(r[:displayLimit]) + "..."
	}
	return s
}

func displayScalar(v any) string {
	if v == nil {
		return "—"
	}
	return truncate(model.ValueString(v))
}

// EncodeValue renders a stored value as form text: strings raw, numbers by
// their literal, anything else as JSON.
func EncodeValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// text, email, url

type textKind struct{ typ model.FieldType }

func (k textKind) Type() model.FieldType { return k.typ }
func (textKind) Widget() Widget          { return WidgetInput }
func (textKind) Display(v any) string    { return displayScalar(v) }
func (textKind) Encode(v any) string     { return EncodeValue(v) }
func (textKind) sealed()                 {}

func (k textKind) Parse(def model.FieldDefinition, input string) (any, error) {
	switch k.typ {
	case model.FieldEmail:
		if input == "" {
			return "", nil
		}
		addr, err := mail.ParseAddress(input)
		if err != nil || addr.Address != input {
			return nil, invalid(def, "invalid email %q", input)
		}
	case model.FieldURL:
		if input == "" {
			return "", nil
		}
		u, err := url.Parse(input)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, invalid(def, "invalid url %q", input)
		}
	}
	return input, nil
}

// number

type numberKind struct{}

func (numberKind) Type() model.FieldType { return model.FieldNumber }
func (numberKind) Widget() Widget        { return WidgetNumber }
func (numberKind) Display(v any) string  { return displayScalar(v) }
func (numberKind) Encode(v any) string   { return EncodeValue(v) }
func (numberKind) sealed()               {}

func (numberKind) Parse(def model.FieldDefinition, input string) (any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if _, err := strconv.ParseFloat(input, 64); err != nil {
		return nil, invalid(def, "not a number: %q", input)
	}
	return json.Number(input), nil
}

// boolean

type booleanKind struct{}

func (booleanKind) Type() model.FieldType { return model.FieldBoolean }
func (booleanKind) Widget() Widget        { return WidgetToggle }
func (booleanKind) Encode(v any) string   { return EncodeValue(v) }
func (booleanKind) sealed()               {}

func (booleanKind) Display(v any) string {
	if v == nil {
		return "—"
	}
	if b, ok := v.(bool); ok && b {
		return "Yes"
	}
	return "No"
}

func (booleanKind) Parse(def model.FieldDefinition, input string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off", "":
		return false, nil
	default:
		return nil, invalid(def, "not a boolean: %q", input)
	}
}

// date

type dateKind struct{}

func (dateKind) Type() model.FieldType { return model.FieldDate }
func (dateKind) Widget() Widget        { return WidgetDate }
func (dateKind) Display(v any) string  { return displayScalar(v) }
func (dateKind) Encode(v any) string   { return EncodeValue(v) }
func (dateKind) sealed()               {}

func (dateKind) Parse(def model.FieldDefinition, input string) (any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if _, err := time.Parse(time.RFC3339, input); err == nil {
		return input, nil
	}
	if _, err := time.Parse(time.DateOnly, input); err == nil {
		return input, nil
	}
	return nil, invalid(def, "not a date (RFC 3339 or YYYY-MM-DD): %q", input)
}

// json, editor

type jsonKind struct{}

func (jsonKind) Type() model.FieldType { return model.FieldJSON }
func (jsonKind) Widget() Widget        { return WidgetTextarea }
func (jsonKind) Encode(v any) string   { return EncodeValue(v) }
func (jsonKind) sealed()               {}

func (jsonKind) Display(v any) string {
	if v == nil {
		return "—"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return truncate(fmt.Sprint(v))
	}
	return truncate(string(b))
}

func (jsonKind) Parse(def model.FieldDefinition, input string) (any, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	var v any
	if err := model.DecodeJSON([]byte(input), &v); err != nil {
		return nil, invalid(def, "invalid JSON: %v", err)
	}
	return v, nil
}

// file

type fileKind struct{}

func (fileKind) Type() model.FieldType { return model.FieldFile }
func (fileKind) Widget() Widget        { return WidgetFile }
func (fileKind) Encode(v any) string   { return EncodeValue(v) }
func (fileKind) sealed()               {}

func (fileKind) Display(v any) string {
	f, ok := ExistingFile(v)
	if !ok {
		return "—"
	}
	return truncate(f.Filename)
}

func (fileKind) Parse(def model.FieldDefinition, _ string) (any, error) {
	return nil, invalid(def, "file fields are staged as uploads, not typed")
}

// ExistingFile decodes a stored file value, which may be an object or a JSON string.
func ExistingFile(v any) (model.ExistingFile, bool) {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return model.ExistingFile{}, false
	case string:
		if t == "" {
			return model.ExistingFile{}, false
		}
		raw = []byte(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return model.ExistingFile{}, false
		}
		raw = b
	}
	var f model.ExistingFile
	if err := json.Unmarshal(raw, &f); err != nil || f.Filename == "" {
		return model.ExistingFile{}, false
	}
	return f, true
}

// relation

type relationKind struct{}

func (relationKind) Type() model.FieldType { return model.FieldRelation }
func (relationKind) Widget() Widget        { return WidgetRelation }
func (relationKind) Display(v any) string  { return displayScalar(v) }
func (relationKind) Encode(v any) string   { return EncodeValue(v) }
func (relationKind) sealed()               {}

func (relationKind) Parse(_ model.FieldDefinition, input string) (any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	return input, nil
}

// select

type selectKind struct{}

func (selectKind) Type() model.FieldType { return model.FieldSelect }
func (selectKind) Widget() Widget        { return WidgetSelect }
func (selectKind) Display(v any) string  { return displayScalar(v) }
func (selectKind) Encode(v any) string   { return EncodeValue(v) }
func (selectKind) sealed()               {}

func (selectKind) Parse(def model.FieldDefinition, input string) (any, error) {
	if input == "" {
		return nil, nil
	}
	allowed := AllowedValues(def)
	for _, a := range allowed {
		if a == input {
			return input, nil
		}
	}
	return nil, invalid(def, "%q is not one of %s", input, strings.Join(allowed, ", "))
}

// AllowedValues returns the declared values of a select field.
func AllowedValues(def model.FieldDefinition) []string {
	var out []string
	switch vs := def.Options["values"].(type) {
	case []any:
		for _, v := range vs {
			out = append(out, model.ValueString(v))
		}
	case []string:
		out = append(out, vs...)
	case string:
		for _, v := range strings.Split(vs, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
