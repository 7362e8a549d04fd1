package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// FieldType is the declared type of a schema field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldEmail    FieldType = "email"
	FieldURL      FieldType = "url"
	FieldDate     FieldType = "date"
	FieldJSON     FieldType = "json"
	FieldFile     FieldType = "file"
	FieldRelation FieldType = "relation"
	FieldSelect   FieldType = "select"
)

// FieldTypes lists the known field types in picker order.
var FieldTypes = []FieldType{
	FieldText, FieldNumber, FieldBoolean, FieldEmail, FieldURL,
	FieldDate, FieldJSON, FieldFile, FieldRelation, FieldSelect,
}

// FieldDefinition describes one field of a collection schema.
type FieldDefinition struct {
	Name     string         `json:"name"`
	Type     FieldType      `json:"type"`
	Required bool           `json:"required"`
	Options  map[string]any `json:"options,omitempty"`
}

// Option returns a type-specific option as a string.
func (f FieldDefinition) Option(key string) string {
	if f.Options == nil {
		return ""
	}
	return ValueString(f.Options[key])
}

// Schema is the ordered list of field definitions of a collection. On the
// wire the canonical form is an object keyed by field name; an array of
// definitions is accepted as well.
type Schema []FieldDefinition

// Field looks a definition up by name.
func (s Schema) Field(name string) (FieldDefinition, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Names returns field names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// Canonical returns the mapping form: name -> {type, required, options...}.
func (s Schema) Canonical() map[string]map[string]any {
	out := make(map[string]map[string]any, len(s))
	for _, f := range s {
		out[f.Name] = canonicalField(f)
	}
	return out
}

func canonicalField(f FieldDefinition) map[string]any {
	def := make(map[string]any, len(f.Options)+2)
	for k, v := range f.Options {
		def[k] = v
	}
	typ := f.Type
	if typ == "" {
		typ = FieldText
	}
	def["type"] = string(typ)
	def["required"] = f.Required
	return def
}

// MarshalJSON writes the canonical object form, preserving field order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(canonicalField(f))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object form (document order is kept) or an array.
func (s *Schema) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = nil
		return nil
	}
	switch b[0] {
	case '[':
		var defs []FieldDefinition
		if err := DecodeJSON(b, &defs); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		for i := range defs {
			if defs[i].Type == "" {
				defs[i].Type = FieldText
			}
		}
		*s = defs
		return nil
	case '{':
		defs, err := decodeSchemaObject(b)
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		*s = defs
		return nil
	default:
		return errors.New("schema: expected object or array")
	}
}

func decodeSchemaObject(b []byte) (Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	out := Schema{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out = append(out, definitionFromMap(name, raw))
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

// definitionFromMap splits a wire field definition into the typed part and options.
func definitionFromMap(name string, raw map[string]any) FieldDefinition {
	def := FieldDefinition{Name: name, Type: FieldText}
	for k, v := range raw {
		switch k {
		case "type":
			if t, ok := v.(string); ok && t != "" {
				def.Type = FieldType(t)
			}
		case "required":
			def.Required, _ = v.(bool)
		case "name":
		case "options":
			// array-form definitions nest options; flatten them
			if m, ok := v.(map[string]any); ok {
				for mk, mv := range m {
					def.setOption(mk, mv)
				}
				continue
			}
			def.setOption(k, v)
		default:
			def.setOption(k, v)
		}
	}
	return def
}

func (f *FieldDefinition) setOption(k string, v any) {
	if f.Options == nil {
		f.Options = map[string]any{}
	}
	f.Options[k] = v
}
