package apitest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/and161185/motectl/internal/model"
)

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"settings": s.settings})
}

// patchSettings merges top-level keys.
func (s *Server) patchSettings(w http.ResponseWriter, r *http.Request) {
	var in model.Settings
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = model.Settings{}
	}
	for k, v := range in {
		s.settings[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": s.settings})
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	var items []model.LogEntry
	for _, e := range s.logs {
		if st := q.Get("status"); st != "" && strconv.Itoa(e.Status) != st {
			continue
		}
		if m := q.Get("method"); m != "" && !strings.EqualFold(e.Method, m) {
			continue
		}
		if p := q.Get("path"); p != "" && !strings.Contains(e.Path, p) {
			continue
		}
		items = append(items, e)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(items, intParam(r, "page", 1), intParam(r, "perPage", 20)))
}

func (s *Server) logStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errCount := 0
	for _, e := range s.logs {
		if e.Status >= 400 {
			errCount++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(s.logs), "errors": errCount})
}

func (s *Server) clearLogs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.logs = nil
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	var items []model.Job
	for _, j := range s.jobs {
		if st := q.Get("status"); st != "" && j.Status != st {
			continue
		}
		if n := q.Get("name"); n != "" && !strings.Contains(j.Name, n) {
			continue
		}
		items = append(items, j)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(items, intParam(r, "page", 1), intParam(r, "perPage", 20)))
}

func (s *Server) jobStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]any{"total": len(s.jobs)}
	for _, j := range s.jobs {
		n, _ := counts[j.Status].(int)
		counts[j.Status] = n + 1
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) findJob(id string) int {
	for i, j := range s.jobs {
		if j.ID.String() == id {
			return i
		}
	}
	return -1
}

func (s *Server) retryJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findJob(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.jobs[i].Status = "pending"
	s.jobs[i].Error = ""
	writeJSON(w, http.StatusOK, s.jobs[i])
}

func (s *Server) retryAllJobs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.jobs {
		if s.jobs[i].Status == "failed" {
			s.jobs[i].Status = "pending"
			s.jobs[i].Error = ""
			n++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"retried": n})
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findJob(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.jobs[:0]
	for _, j := range s.jobs {
		if status != "" && j.Status != status {
			kept = append(kept, j)
		}
	}
	s.jobs = kept
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCrons(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": append([]model.CronEntry{}, s.crons...)})
}
