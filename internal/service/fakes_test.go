package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
)

type fakeStore struct {
	kv       map[string]string
	setErr   error
	delCalls [][]string
}

var _ repository.SessionStore = (*fakeStore)(nil)

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.kv[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}
func (f *fakeStore) Set(_ context.Context, kv map[string]string) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.kv == nil {
		f.kv = map[string]string{}
	}
	for k, v := range kv {
		f.kv[k] = v
	}
	return nil
}
func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	f.delCalls = append(f.delCalls, keys)
	for _, k := range keys {
		delete(f.kv, k)
	}
	return nil
}

type fakeAuth struct {
	token string
	admin model.Admin
	err   error
}

var _ repository.AuthRepository = (*fakeAuth)(nil)

func (f *fakeAuth) Login(context.Context, string, string) (string, model.Admin, error) {
	return f.token, f.admin, f.err
}

type fakeTokens struct{ token string }

func (f *fakeTokens) SetToken(t string) { f.token = t }

// fakeRecords keeps records per collection in insertion order.
type fakeRecords struct {
	data    map[string][]model.Record
	nextID  int
	listErr error
	getErr  error
	saveErr error
	// failDeleteAt makes the n-th DeleteRecord call (1-based) fail.
	failDeleteAt int

	deleteCalls []string
	saved       []model.WritePayload
	searches    []string
}

var (
	_ repository.RecordRepository = (*fakeRecords)(nil)
	_ repository.RecordLookup     = (*fakeRecords)(nil)
)

func newFakeRecords() *fakeRecords { return &fakeRecords{data: map[string][]model.Record{}} }

func (f *fakeRecords) add(coll string, r model.Record) model.Record {
	f.nextID++
	r = r.Clone()
	r[model.KeyID] = fmt.Sprint(f.nextID)
	f.data[coll] = append(f.data[coll], r)
	return r
}

func (f *fakeRecords) ListRecords(_ context.Context, coll string, q model.ListQuery) (model.RecordPage, error) {
	if f.listErr != nil {
		return model.RecordPage{}, f.listErr
	}
	all := f.data[coll]
	per := q.PerPage
	if per <= 0 {
		per = DefaultPerPage
	}
	lo := (q.Page - 1) * per
	if lo > len(all) {
		lo = len(all)
	}
	hi := lo + per
	if hi > len(all) {
		hi = len(all)
	}
	pages := (len(all) + per - 1) / per
	if pages < 1 {
		pages = 1
	}
	items := make([]model.Record, 0, hi-lo)
	for _, r := range all[lo:hi] {
		items = append(items, r.Clone())
	}
	return model.RecordPage{Items: items, Page: q.Page, PerPage: per, TotalItems: len(all), TotalPages: pages}, nil
}

func (f *fakeRecords) GetRecord(_ context.Context, coll, id string) (model.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.data[coll] {
		if r.ID() == id {
			return r.Clone(), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeRecords) CreateRecord(_ context.Context, coll string, p model.WritePayload) (model.Record, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = append(f.saved, p)
	r := model.Record{}
	for k, v := range p.Fields {
		if v != nil && k != model.KeyPassword {
			r[k] = v
		}
	}
	return f.add(coll, r), nil
}

func (f *fakeRecords) UpdateRecord(_ context.Context, coll, id string, p model.WritePayload) (model.Record, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = append(f.saved, p)
	for i, r := range f.data[coll] {
		if r.ID() != id {
			continue
		}
		for k, v := range p.Fields {
			switch {
			case k == model.KeyPassword:
			case v == nil:
				delete(r, k)
			default:
				r[k] = v
			}
		}
		f.data[coll][i] = r
		return r.Clone(), nil
	}
	return nil, errs.ErrNotFound
}

func (f *fakeRecords) DeleteRecord(_ context.Context, coll, id string) error {
	f.deleteCalls = append(f.deleteCalls, id)
	if f.failDeleteAt > 0 && len(f.deleteCalls) == f.failDeleteAt {
		return fmt.Errorf("delete %s: %w", id, errs.ErrNotFound)
	}
	recs := f.data[coll]
	for i, r := range recs {
		if r.ID() == id {
			f.data[coll] = append(recs[:i], recs[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeRecords) DownloadFile(context.Context, string, string, string, io.Writer) (int64, error) {
	return 0, nil
}

func (f *fakeRecords) SearchRecords(_ context.Context, coll, filter string, perPage int) ([]model.Record, error) {
	f.searches = append(f.searches, coll+"|"+filter)
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Record{}
	for _, r := range f.data[coll] {
		if len(out) == perPage {
			break
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

type fakeCollections struct {
	live    []model.Collection
	listErr error
	saveErr error

	created  []model.Collection
	updated  map[string]model.Collection
	deleted  []string
	imports  int
	lastRaw  []json.RawMessage
	lastMiss bool
	export   json.RawMessage
}

var _ repository.CollectionRepository = (*fakeCollections)(nil)

func (f *fakeCollections) ListCollections(context.Context) ([]model.Collection, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Collection(nil), f.live...), nil
}
func (f *fakeCollections) CreateCollection(_ context.Context, c model.Collection) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.created = append(f.created, c)
	c.ID = model.ID(fmt.Sprintf("c%d", len(f.live)+1))
	f.live = append(f.live, c)
	return nil
}
func (f *fakeCollections) UpdateCollection(_ context.Context, name string, c model.Collection) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.updated == nil {
		f.updated = map[string]model.Collection{}
	}
	f.updated[name] = c
	for i := range f.live {
		if f.live[i].Name == name {
			c.ID = f.live[i].ID
			f.live[i] = c
			return nil
		}
	}
	return errs.ErrNotFound
}
func (f *fakeCollections) DeleteCollection(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	for i := range f.live {
		if f.live[i].Name == name {
			f.live = append(f.live[:i], f.live[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}
func (f *fakeCollections) ExportCollections(context.Context) (json.RawMessage, error) {
	if f.export != nil {
		return f.export, nil
	}
	return json.Marshal(f.live)
}
func (f *fakeCollections) ImportCollections(_ context.Context, raw []json.RawMessage, deleteMissing bool) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.imports++
	f.lastRaw, f.lastMiss = raw, deleteMissing
	var next []model.Collection
	for _, r := range raw {
		var c model.Collection
		if err := json.Unmarshal(r, &c); err != nil {
			return err
		}
		next = append(next, c)
	}
	if !deleteMissing {
		ids := map[model.ID]bool{}
		for _, c := range next {
			ids[c.ID] = true
		}
		for _, c := range f.live {
			if !ids[c.ID] {
				next = append(next, c)
			}
		}
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].Name < next[j].Name })
	f.live = next
	return nil
}

type fakeAdmin struct {
	settings model.Settings
	logs     []model.LogEntry
	jobs     []model.Job
	crons    []model.CronEntry
	err      error

	cleared    int
	retried    []string
	retryAll   int
	deletedJob []string
	clearedBy  []string
}

var _ repository.AdminRepository = (*fakeAdmin)(nil)

func (f *fakeAdmin) GetSettings(context.Context) (model.Settings, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := model.Settings{}
	for k, v := range f.settings {
		out[k] = v
	}
	return out, nil
}
func (f *fakeAdmin) UpdateSettings(_ context.Context, s model.Settings) (model.Settings, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.settings == nil {
		f.settings = model.Settings{}
	}
	for k, v := range s {
		f.settings[k] = v
	}
	return f.GetSettings(context.Background())
}
func (f *fakeAdmin) ListLogs(_ context.Context, page, perPage int, _ model.LogFilter) (model.Page[model.LogEntry], error) {
	if f.err != nil {
		return model.Page[model.LogEntry]{}, f.err
	}
	return model.Page[model.LogEntry]{Items: f.logs, Page: page, PerPage: perPage, TotalItems: len(f.logs), TotalPages: 1}, nil
}
func (f *fakeAdmin) LogStats(context.Context) (model.Stats, error) {
	return model.Stats{"total": len(f.logs)}, f.err
}
func (f *fakeAdmin) ClearLogs(context.Context) error {
	f.cleared++
	f.logs = nil
	return f.err
}
func (f *fakeAdmin) ListJobs(_ context.Context, page, perPage int, _ model.JobFilter) (model.Page[model.Job], error) {
	if f.err != nil {
		return model.Page[model.Job]{}, f.err
	}
	return model.Page[model.Job]{Items: f.jobs, Page: page, PerPage: perPage, TotalItems: len(f.jobs), TotalPages: 1}, nil
}
func (f *fakeAdmin) JobStats(context.Context) (model.Stats, error) {
	return model.Stats{"total": len(f.jobs)}, f.err
}
func (f *fakeAdmin) RetryJob(_ context.Context, id string) error {
	f.retried = append(f.retried, id)
	return f.err
}
func (f *fakeAdmin) RetryAllJobs(context.Context) (int, error) {
	f.retryAll++
	n := 0
	for _, j := range f.jobs {
		if j.Status == "failed" {
			n++
		}
	}
	return n, f.err
}
func (f *fakeAdmin) DeleteJob(_ context.Context, id string) error {
	f.deletedJob = append(f.deletedJob, id)
	return f.err
}
func (f *fakeAdmin) ClearJobs(_ context.Context, status string) error {
	f.clearedBy = append(f.clearedBy, status)
	return f.err
}
func (f *fakeAdmin) ListCrons(context.Context) ([]model.CronEntry, error) {
	return append([]model.CronEntry(nil), f.crons...), f.err
}
