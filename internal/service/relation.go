package service

import (
	"context"
	"fmt"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
)

// RelationPageSize bounds relation search results.
const RelationPageSize = 20

var (
	labelKeys = []string{"name", "title", "label", "email", "username"}

	internalKeys = map[string]bool{
		model.KeyID:           true,
		model.KeyCreatedAt:    true,
		model.KeyUpdatedAt:    true,
		model.KeyPasswordHash: true,
	}
)

// DisplayLabel derives a human label for a related record.
func DisplayLabel(rec model.Record) string {
	if rec == nil {
		return ""
	}
	for _, k := range labelKeys {
		if s := labelValue(rec[k]); s != "" {
			return s
		}
	}
	for _, k := range sortedKeys(rec) {
		if internalKeys[k] {
			continue
		}
		if s, ok := rec[k].(string); ok && s != "" {
			return s
		}
	}
	return "Record #" + rec.ID()
}

func labelValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if !t {
			return ""
		}
	}
	return model.ValueString(v)
}

// RelationTarget resolves the collection a relation field points at:
// options.collectionId matched against the live collections, else
// options.collection.
func RelationTarget(def model.FieldDefinition, live []model.Collection) (string, error) {
	if id := def.Option("collectionId"); id != "" {
		for _, c := range live {
			if c.ID.String() == id {
				return c.Name, nil
			}
		}
	}
	if name := def.Option("collection"); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("%w: relation field %q has no target collection", errs.ErrValidation, def.Name)
}

// RelationPicker searches the target collection of one relation field. It
// only depends on the narrow lookup capability.
type RelationPicker struct {
	Field  model.FieldDefinition
	Target string

	Options  []model.Record
	Selected model.Record

	lookup repository.RecordLookup
}

// NewRelationPicker resolves the field's target collection.
func NewRelationPicker(lookup repository.RecordLookup, def model.FieldDefinition, live []model.Collection) (*RelationPicker, error) {
	target, err := RelationTarget(def, live)
	if err != nil {
		return nil, err
	}
	return &RelationPicker{Field: def, Target: target, lookup: lookup}, nil
}

// Search loads the first page of target records matching the opaque filter.
// A failed search leaves no options.
func (p *RelationPicker) Search(ctx context.Context, filter string) error {
	recs, err := p.lookup.SearchRecords(ctx, p.Target, filter, RelationPageSize)
	if err != nil {
		p.Options = nil
		return fmt.Errorf("search %s: %w", p.Target, err)
	}
	p.Options = recs
	return nil
}

// LoadSelected caches the record the form currently points at.
func (p *RelationPicker) LoadSelected(ctx context.Context, id string) error {
	if id == "" {
		p.Selected = nil
		return nil
	}
	rec, err := p.lookup.GetRecord(ctx, p.Target, id)
	if err != nil {
		p.Selected = nil
		return fmt.Errorf("load %s/%s: %w", p.Target, id, err)
	}
	p.Selected = rec
	return nil
}

// Select writes the record id into the form and caches the record.
func (p *RelationPicker) Select(f *RecordForm, rec model.Record) error {
	if err := f.SetValue(p.Field.Name, rec.ID()); err != nil {
		return err
	}
	p.Selected = rec
	return nil
}

// Clear empties the relation value.
func (p *RelationPicker) Clear(f *RecordForm) error {
	if err := f.SetValue(p.Field.Name, nil); err != nil {
		return err
	}
	p.Selected = nil
	return nil
}

// Label is the display label of the cached selection.
func (p *RelationPicker) Label() string { return DisplayLabel(p.Selected) }
