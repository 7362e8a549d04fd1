package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
)

// CollectionsPerPage is the dashboard page size.
const CollectionsPerPage = 12

// CollectionForm is the editable definition of a collection.
type CollectionForm struct {
	Name   string
	Type   model.CollectionType
	Fields []model.FieldDefinition
	Rules  [5]string
}

// NewCollectionForm copies c into a form; nil gives a blank base collection.
func NewCollectionForm(c *model.Collection) *CollectionForm {
	if c == nil {
		return &CollectionForm{Type: model.CollectionBase}
	}
	f := &CollectionForm{Name: c.Name, Type: c.TypeOrDefault(), Rules: c.Rules()}
	for _, def := range c.Schema {
		cp := def
		cp.Options = map[string]any{}
		for k, v := range def.Options {
			cp.Options[k] = v
		}
		f.Fields = append(f.Fields, cp)
	}
	return f
}

// AddField appends a field named field_<n>.
func (f *CollectionForm) AddField(t model.FieldType) *model.FieldDefinition {
	f.Fields = append(f.Fields, model.FieldDefinition{
		Name:    fmt.Sprintf("field_%d", len(f.Fields)+1),
		Type:    t,
		Options: map[string]any{},
	})
	return &f.Fields[len(f.Fields)-1]
}

// RemoveField drops the field at index i.
func (f *CollectionForm) RemoveField(i int) error {
	if i < 0 || i >= len(f.Fields) {
		return fmt.Errorf("%w: no field at index %d", errs.ErrValidation, i)
	}
	f.Fields = append(f.Fields[:i], f.Fields[i+1:]...)
	return nil
}

// SetRule sets a rule by its key (listRule, viewRule, ...).
func (f *CollectionForm) SetRule(key, expr string) error {
	for i, n := range model.RuleNames {
		if n == key {
			f.Rules[i] = expr
			return nil
		}
	}
	return fmt.Errorf("%w: unknown rule %q", errs.ErrValidation, key)
}

// Validate checks the form locally. Messages are shown to the operator as is.
func (f *CollectionForm) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: Collection name is required", errs.ErrValidation)
	}
	seen := map[string]bool{}
	for _, def := range f.Fields {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return fmt.Errorf("%w: All fields must have a name", errs.ErrValidation)
		}
		if seen[name] {
			return fmt.Errorf("%w: Duplicate field name %q", errs.ErrValidation, name)
		}
		seen[name] = true
	}
	return nil
}

// Collection builds the definition to submit.
func (f *CollectionForm) Collection() model.Collection {
	c := model.Collection{
		Name:   strings.TrimSpace(f.Name),
		Type:   f.Type,
		Schema: model.Schema{},
	}
	if c.Type == "" {
		c.Type = model.CollectionBase
	}
	for _, def := range f.Fields {
		def.Name = strings.TrimSpace(def.Name)
		if len(def.Options) == 0 {
			def.Options = nil
		}
		c.Schema = append(c.Schema, def)
	}
	rules := []**string{&c.ListRule, &c.ViewRule, &c.CreateRule, &c.UpdateRule, &c.DeleteRule}
	for i, r := range f.Rules {
		if r != "" {
			v := r
			*rules[i] = &v
		}
	}
	return c
}

// CollectionService manages collection definitions.
type CollectionService struct {
	repo    repository.CollectionRepository
	confirm Confirmer
	busy    *Busy
	log     *zap.Logger
}

// NewCollectionService constructs a CollectionService.
func NewCollectionService(repo repository.CollectionRepository, c Confirmer, busy *Busy, log *zap.Logger) *CollectionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CollectionService{repo: repo, confirm: c, busy: busy, log: log}
}

// List loads the live collections.
func (s *CollectionService) List(ctx context.Context) ([]model.Collection, error) {
	cols, err := s.repo.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("load collections: %w", err)
	}
	return cols, nil
}

// Save validates the form and creates it, or updates editing when set. It
// returns the reloaded live set.
func (s *CollectionService) Save(ctx context.Context, editing *model.Collection, f *CollectionForm) ([]model.Collection, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	c := f.Collection()
	err := s.busy.Do(func() error {
		if editing != nil {
			return s.repo.UpdateCollection(ctx, editing.Name, c)
		}
		return s.repo.CreateCollection(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("collection saved", zap.String("name", c.Name), zap.Int("fields", len(c.Schema)))
	return s.List(ctx)
}

// DeleteMessage is the confirmation text for deleting a collection.
func DeleteMessage(name string) string {
	return fmt.Sprintf("Are you sure you want to delete the %q collection? This will delete ALL records and cannot be undone.", name)
}

// Delete removes a collection after confirmation and returns the reloaded set.
func (s *CollectionService) Delete(ctx context.Context, name string) ([]model.Collection, error) {
	if err := confirm(ctx, s.confirm, DeleteMessage(name)); err != nil {
		return nil, err
	}
	if err := s.busy.Do(func() error { return s.repo.DeleteCollection(ctx, name) }); err != nil {
		return nil, err
	}
	s.log.Info("collection deleted", zap.String("name", name))
	return s.List(ctx)
}

// FindCollection looks a collection up by name.
func FindCollection(cols []model.Collection, name string) (model.Collection, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return model.Collection{}, false
}

// FilterCollections matches name or type case-insensitively.
func FilterCollections(cols []model.Collection, query string) []model.Collection {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return cols
	}
	var out []model.Collection
	for _, c := range cols {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(string(c.TypeOrDefault()), q) {
			out = append(out, c)
		}
	}
	return out
}

// PageCollections returns page (1-based) of cols and the page count.
func PageCollections(cols []model.Collection, page int) ([]model.Collection, int) {
	pages := (len(cols) + CollectionsPerPage - 1) / CollectionsPerPage
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	lo := (page - 1) * CollectionsPerPage
	hi := lo + CollectionsPerPage
	if hi > len(cols) {
		hi = len(cols)
	}
	return cols[lo:hi], pages
}
