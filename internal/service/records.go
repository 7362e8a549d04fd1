package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/and161185/motectl/internal/crypto"
	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
	"github.com/and161185/motectl/internal/schema"
)

// NewRecordID is the route token for an unsaved record.
const NewRecordID = "new"

// RecordForm is the editable state of one record. Values never contain the
// bookkeeping keys; staged uploads, removals and passwords live beside them
// and never survive a reload.
type RecordForm struct {
	Collection model.Collection
	RecordID   string // "" for a new record

	Values model.Record

	baseline    model.Record
	baselineSum crypto.Fingerprint

	uploads  map[string]model.FileUpload
	removals []string
	password string
	confirm  string
}

func newRecordForm(col model.Collection, id string, values model.Record) (*RecordForm, error) {
	f := &RecordForm{
		Collection: col,
		RecordID:   id,
		Values:     values.Editable(),
		uploads:    map[string]model.FileUpload{},
	}
	if err := f.snapshot(); err != nil {
		return nil, err
	}
	return f, nil
}

// snapshot takes the current values as the clean baseline.
func (f *RecordForm) snapshot() error {
	sum, err := crypto.FingerprintOf(f.Values)
	if err != nil {
		return err
	}
	f.baseline = f.Values.Clone()
	f.baselineSum = sum
	return nil
}

// IsNew reports whether saving creates a record.
func (f *RecordForm) IsNew() bool { return f.RecordID == "" }

// Fields returns the schema in display order.
func (f *RecordForm) Fields() model.Schema { return f.Collection.Schema }

// Baseline returns a copy of the values captured at load or last save.
func (f *RecordForm) Baseline() model.Record { return f.baseline.Clone() }

func (f *RecordForm) field(name string) (model.FieldDefinition, schema.Kind, error) {
	def, ok := f.Collection.Schema.Field(name)
	if !ok {
		return model.FieldDefinition{}, nil, fmt.Errorf("%w: unknown field %q", errs.ErrValidation, name)
	}
	k, err := schema.KindOf(def.Type)
	if err != nil {
		return def, nil, fmt.Errorf("field %q: %w", name, err)
	}
	return def, k, nil
}

// Set parses operator input into the named field. File fields are staged
// with StageFile instead.
func (f *RecordForm) Set(name, input string) error {
	def, k, err := f.field(name)
	if err != nil {
		return err
	}
	v, err := k.Parse(def, input)
	if err != nil {
		return err
	}
	f.Values[name] = v
	return nil
}

// SetValue stores an already typed value, e.g. a relation id.
func (f *RecordForm) SetValue(name string, v any) error {
	if _, _, err := f.field(name); err != nil {
		return err
	}
	f.Values[name] = v
	return nil
}

// Value returns the current value of a field.
func (f *RecordForm) Value(name string) any { return f.Values[name] }

// StageFile holds an upload for a file field until save.
func (f *RecordForm) StageFile(name string, up model.FileUpload) error {
	_, k, err := f.field(name)
	if err != nil {
		return err
	}
	if k.Type() != model.FieldFile {
		return fmt.Errorf("%w: field %q is not a file field", errs.ErrValidation, name)
	}
	f.uploads[name] = up
	return nil
}

// UnstageFile drops a staged upload.
func (f *RecordForm) UnstageFile(name string) { delete(f.uploads, name) }

// Uploads returns the staged uploads keyed by field name.
func (f *RecordForm) Uploads() map[string]model.FileUpload {
	out := make(map[string]model.FileUpload, len(f.uploads))
	for k, v := range f.uploads {
		out[k] = v
	}
	return out
}

// ExistingFile decodes the stored file of a field.
func (f *RecordForm) ExistingFile(name string) (model.ExistingFile, bool) {
	return schema.ExistingFile(f.Values[name])
}

// ClearExistingFile marks a stored file for removal on save and drops it
// from the values. Other fields are untouched.
func (f *RecordForm) ClearExistingFile(name string) {
	if _, ok := f.Values[name]; !ok {
		return
	}
	delete(f.Values, name)
	for _, r := range f.removals {
		if r == name {
			return
		}
	}
	f.removals = append(f.removals, name)
}

// Removals lists fields marked for file removal.
func (f *RecordForm) Removals() []string { return append([]string(nil), f.removals...) }

// SetPassword sets the transient password pair of an auth record.
func (f *RecordForm) SetPassword(password, confirm string) error {
	if !f.Collection.IsAuth() {
		return fmt.Errorf("%w: %q is not an auth collection", errs.ErrValidation, f.Collection.Name)
	}
	f.password, f.confirm = password, confirm
	return nil
}

// PasswordsMatch reports whether the pair is acceptable for save.
func (f *RecordForm) PasswordsMatch() bool {
	return f.password == "" || f.password == f.confirm
}

// IsDirty reports unsaved edits: a staged upload, password text, or values
// that differ from the baseline.
func (f *RecordForm) IsDirty() bool {
	if len(f.uploads) > 0 || f.password != "" || f.confirm != "" {
		return true
	}
	sum, err := crypto.FingerprintOf(f.Values)
	if err != nil {
		return true
	}
	return sum != f.baselineSum
}

// Payload serializes the form for save. It fails with
// errs.ErrPasswordMismatch before anything is sent.
func (f *RecordForm) Payload() (model.WritePayload, error) {
	if f.Collection.IsAuth() && !f.PasswordsMatch() {
		return model.WritePayload{}, errs.ErrPasswordMismatch
	}
	fields := map[string]any(f.Values.Editable())
	if f.Collection.IsAuth() && f.password != "" {
		fields[model.KeyPassword] = f.password
	}
	for _, name := range f.removals {
		if _, staged := f.uploads[name]; !staged {
			fields[name] = nil
		}
	}
	p := model.WritePayload{Fields: fields}
	if len(f.uploads) > 0 {
		p.Files = f.Uploads()
	}
	return p, nil
}

// afterSave resets transient state and takes a new baseline.
func (f *RecordForm) afterSave(saved model.Record) error {
	if f.IsNew() {
		f.RecordID = saved.ID()
	}
	f.uploads = map[string]model.FileUpload{}
	f.removals = nil
	f.password, f.confirm = "", ""
	return f.snapshot()
}

// RecordService loads and saves record forms.
type RecordService struct {
	records repository.RecordRepository
	busy    *Busy
	log     *zap.Logger
}

// NewRecordService constructs a RecordService.
func NewRecordService(records repository.RecordRepository, busy *Busy, log *zap.Logger) *RecordService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordService{records: records, busy: busy, log: log}
}

// LoadForEdit returns a fresh form. recordID "new" (or "") gives an empty
// form; otherwise the record is fetched and stripped of bookkeeping keys.
func (s *RecordService) LoadForEdit(ctx context.Context, col model.Collection, recordID string) (*RecordForm, error) {
	if err := schema.Check(col.Schema); err != nil {
		return nil, err
	}
	if recordID == "" || recordID == NewRecordID {
		return newRecordForm(col, "", model.Record{})
	}
	rec, err := s.records.GetRecord(ctx, col.Name, recordID)
	if err != nil {
		return nil, fmt.Errorf("load record %s/%s: %w", col.Name, recordID, err)
	}
	return newRecordForm(col, recordID, rec)
}

// Save creates or patches the record. On failure the form is unchanged.
func (s *RecordService) Save(ctx context.Context, f *RecordForm) (model.Record, error) {
	p, err := f.Payload()
	if err != nil {
		return nil, err
	}
	var saved model.Record
	err = s.busy.Do(func() error {
		var err error
		if f.IsNew() {
			saved, err = s.records.CreateRecord(ctx, f.Collection.Name, p)
		} else {
			saved, err = s.records.UpdateRecord(ctx, f.Collection.Name, f.RecordID, p)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := f.afterSave(saved); err != nil {
		return nil, err
	}
	s.log.Debug("record saved",
		zap.String("collection", f.Collection.Name),
		zap.String("id", f.RecordID),
		zap.Bool("multipart", p.Multipart()),
	)
	return saved, nil
}

// DisplayRow renders the visible list columns of a record.
func DisplayRow(col model.Collection, rec model.Record) []string {
	vis := schema.VisibleFields(col.Schema)
	out := make([]string, len(vis))
	for i, def := range vis {
		out[i] = schema.Display(def, rec[def.Name])
	}
	return out
}

// sortedKeys returns the map keys in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
