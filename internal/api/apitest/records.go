package apitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/and161185/motectl/internal/crypto"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/schema"
)

func intParam(r *http.Request, key string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && n > 0 {
		return n
	}
	return def
}

func paginate[T any](items []T, page, perPage int) model.Page[T] {
	total := len(items)
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	lo := (page - 1) * perPage
	if lo > total {
		lo = total
	}
	hi := lo + perPage
	if hi > total {
		hi = total
	}
	out := make([]T, hi-lo)
	copy(out, items[lo:hi])
	return model.Page[T]{Items: out, Page: page, PerPage: perPage, TotalItems: total, TotalPages: pages}
}

// matchFilter understands `field='value'` equality and otherwise does a
// case-insensitive substring search over string values.
func matchFilter(rec model.Record, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	if k, v, ok := strings.Cut(filter, "="); ok {
		v = strings.Trim(strings.TrimSpace(v), `'"`)
		return model.ValueString(rec[strings.TrimSpace(k)]) == v
	}
	needle := strings.ToLower(filter)
	for _, v := range rec {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func less(a, b any) bool {
	as, bs := model.ValueString(a), model.ValueString(b)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		return af < bf
	}
	return as < bs
}

func (s *Server) collection(name string) (model.Collection, bool) {
	if i := s.indexByName(name); i >= 0 {
		return s.collections[i], true
	}
	return model.Collection{}, false
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q := r.URL.Query()

	s.mu.Lock()
	if _, ok := s.collection(name); !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}
	var items []model.Record
	for _, rec := range s.records[name] {
		if matchFilter(rec, q.Get("filter")) {
			items = append(items, rec.Clone())
		}
	}
	s.mu.Unlock()

	if sortKey := q.Get("sort"); sortKey != "" {
		desc := strings.HasPrefix(sortKey, "-")
		field := strings.TrimPrefix(sortKey, "-")
		sort.SliceStable(items, func(i, j int) bool {
			if desc {
				return less(items[j][field], items[i][field])
			}
			return less(items[i][field], items[j][field])
		})
	}
	writeJSON(w, http.StatusOK, paginate(items, intParam(r, "page", 1), intParam(r, "perPage", 20)))
}

func (s *Server) findRecord(name, id string) int {
	for i, rec := range s.records[name] {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	name, id := chi.URLParam(r, "name"), chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findRecord(name, id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	writeJSON(w, http.StatusOK, s.records[name][i])
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	name, id := chi.URLParam(r, "name"), chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findRecord(name, id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	s.records[name] = append(s.records[name][:i], s.records[name][i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	s.writeRecord(w, r, "")
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	s.writeRecord(w, r, chi.URLParam(r, "id"))
}

type upload struct {
	filename, contentType string
	data                  []byte
}

// writeRecord applies a JSON or multipart body. Null JSON values and empty
// multipart text parts remove the field.
func (s *Server) writeRecord(w http.ResponseWriter, r *http.Request, id string) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	col, ok := s.collection(name)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}

	fields, uploads, err := readRecordBody(r, col)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec model.Record
	idx := -1
	if id == "" {
		rec = model.Record{model.KeyID: newID(), model.KeyCreatedAt: json.Number(fmt.Sprint(s.now().Unix()))}
	} else {
		if idx = s.findRecord(name, id); idx < 0 {
			writeError(w, http.StatusNotFound, "Record not found")
			return
		}
		rec = s.records[name][idx].Clone()
	}

	for k, v := range fields {
		switch {
		case k == model.KeyID || k == model.KeyCreatedAt || k == model.KeyUpdatedAt:
		case k == model.KeyPassword && col.IsAuth():
			if pw, _ := v.(string); pw != "" {
				hash, err := crypto.HashPassword(pw)
				if err != nil {
					writeError(w, http.StatusInternalServerError, "hash failed")
					return
				}
				rec[model.KeyPasswordHash] = hash
			}
		case v == nil:
			delete(rec, k)
		default:
			rec[k] = v
		}
	}
	for k, u := range uploads {
		rec[k] = map[string]any{"filename": u.filename, "mime_type": u.contentType, "size": json.Number(strconv.Itoa(len(u.data)))}
		s.files[fileKey(name, rec.ID(), u.filename)] = u.data
	}

	for _, f := range col.Schema {
		if f.Required && (rec[f.Name] == nil || rec[f.Name] == "") {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Field %q is required", f.Name))
			return
		}
	}
	rec[model.KeyUpdatedAt] = json.Number(fmt.Sprint(s.now().Unix()))

	status := http.StatusOK
	if idx < 0 {
		s.records[name] = append(s.records[name], rec)
		status = http.StatusCreated
	} else {
		s.records[name][idx] = rec
	}
	writeJSON(w, status, rec)
}

func readRecordBody(r *http.Request, col model.Collection) (map[string]any, map[string]upload, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		var fields map[string]any
		if err := decodeBody(r, &fields); err != nil {
			return nil, nil, errors.New("Invalid request body")
		}
		return fields, nil, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, nil, errors.New("Invalid multipart body")
	}
	fields := map[string]any{}
	for k, vs := range r.MultipartForm.Value {
		text := vs[0]
		if text == "" {
			fields[k] = nil
			continue
		}
		def, ok := col.Schema.Field(k)
		if !ok {
			fields[k] = text
			continue
		}
		kind, err := schema.KindOf(def.Type)
		if err != nil || kind.Type() == model.FieldFile {
			fields[k] = text
			continue
		}
		v, err := kind.Parse(def, text)
		if err != nil {
			return nil, nil, err
		}
		fields[k] = v
	}
	uploads := map[string]upload{}
	for k, fhs := range r.MultipartForm.File {
		fh := fhs[0]
		f, err := fh.Open()
		if err != nil {
			return nil, nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, nil, err
		}
		uploads[k] = upload{filename: fh.Filename, contentType: fh.Header.Get("Content-Type"), data: data}
	}
	return fields, uploads, nil
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	key := fileKey(chi.URLParam(r, "name"), chi.URLParam(r, "id"), chi.URLParam(r, "filename"))
	s.mu.Lock()
	data, ok := s.files[key]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
