package apitest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/and161185/motectl/internal/model"
)

// collectionBody mirrors the create/update request.
type collectionBody struct {
	Name       string               `json:"name"`
	Type       model.CollectionType `json:"type"`
	Schema     model.Schema         `json:"schema"`
	ListRule   *string              `json:"listRule"`
	ViewRule   *string              `json:"viewRule"`
	CreateRule *string              `json:"createRule"`
	UpdateRule *string              `json:"updateRule"`
	DeleteRule *string              `json:"deleteRule"`
}

func (b collectionBody) apply(c *model.Collection) {
	c.Name = b.Name
	if b.Type != "" {
		c.Type = b.Type
	}
	c.Schema = b.Schema
	c.ListRule, c.ViewRule, c.CreateRule = b.ListRule, b.ViewRule, b.CreateRule
	c.UpdateRule, c.DeleteRule = b.UpdateRule, b.DeleteRule
}

func (s *Server) indexByName(name string) int {
	for i, c := range s.collections {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s *Server) indexByID(id model.ID) int {
	for i, c := range s.collections {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) listCollections(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := append([]model.Collection{}, s.collections...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) exportCollections(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := append([]model.Collection{}, s.collections...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var in collectionBody
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusBadRequest, "Collection name is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexByName(in.Name) >= 0 {
		writeError(w, http.StatusBadRequest, "Collection already exists")
		return
	}
	c := model.Collection{ID: model.ID(newID()), Type: model.CollectionBase}
	in.apply(&c)
	s.collections = append(s.collections, c)
	s.records[c.Name] = []model.Record{}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var in collectionBody
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexByName(name)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}
	if in.Name != name && s.indexByName(in.Name) >= 0 {
		writeError(w, http.StatusBadRequest, "Collection already exists")
		return
	}
	in.apply(&s.collections[i])
	if in.Name != name {
		s.records[in.Name] = s.records[name]
		delete(s.records, name)
	}
	writeJSON(w, http.StatusOK, s.collections[i])
}

func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexByName(name)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Collection not found")
		return
	}
	s.collections = append(s.collections[:i], s.collections[i+1:]...)
	delete(s.records, name)
	w.WriteHeader(http.StatusNoContent)
}

// importCollections upserts candidates by id and optionally deletes the
// live collections the batch does not mention.
func (s *Server) importCollections(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Collections   []json.RawMessage `json:"collections"`
		DeleteMissing bool              `json:"deleteMissing"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cands := make([]model.Collection, len(in.Collections))
	for i, raw := range in.Collections {
		if err := json.Unmarshal(raw, &cands[i]); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid collection definition")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[model.ID]bool{}
	for _, c := range cands {
		if i := s.indexByName(c.Name); i >= 0 && s.collections[i].ID != c.ID {
			writeError(w, http.StatusBadRequest, "Name already used by another collection: "+c.Name)
			return
		}
	}
	for _, c := range cands {
		if c.Type == "" {
			c.Type = model.CollectionBase
		}
		if c.ID == "" {
			c.ID = model.ID(newID())
		}
		seen[c.ID] = true
		if i := s.indexByID(c.ID); i >= 0 {
			old := s.collections[i].Name
			s.collections[i] = c
			if old != c.Name {
				s.records[c.Name] = s.records[old]
				delete(s.records, old)
			}
			continue
		}
		s.collections = append(s.collections, c)
		s.records[c.Name] = []model.Record{}
	}
	if in.DeleteMissing {
		kept := s.collections[:0]
		for _, c := range s.collections {
			if seen[c.ID] {
				kept = append(kept, c)
				continue
			}
			delete(s.records, c.Name)
		}
		s.collections = kept
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": len(cands)})
}
