// Package apitest runs an in-memory motebase API for tests.
package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/motectl/internal/crypto"
	"github.com/and161185/motectl/internal/model"
)

var signKey = []byte("apitest-sign-key")

// Request is one recorded API call.
type Request struct {
	Method      string
	Path        string
	Query       string
	ContentType string
	Auth        string
	RequestID   string
	Body        []byte
}

type failure struct {
	method, path string
	status       int
	body         string
}

type adminEntry struct {
	admin model.Admin
	hash  string
}

// Server is a fake motebase API. All state is guarded by one mutex.
type Server struct {
	URL string

	srv *httptest.Server

	mu          sync.Mutex
	requireAuth bool
	tokens      map[string]bool
	admins      map[string]adminEntry
	collections []model.Collection
	records     map[string][]model.Record
	files       map[string][]byte
	settings    model.Settings
	logs        []model.LogEntry
	jobs        []model.Job
	crons       []model.CronEntry
	requests    []Request
	failures    []failure
	now         func() time.Time
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		requireAuth: true,
		tokens:      map[string]bool{},
		admins:      map[string]adminEntry{},
		records:     map[string][]model.Record{},
		files:       map[string][]byte{},
		settings:    model.Settings{},
		now:         time.Now,
	}
	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record, s.inject)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Group(func(r chi.Router) {
			r.Use(s.auth)

			r.Get("/collections", s.listCollections)
			r.Post("/collections", s.createCollection)
			r.Get("/collections/export", s.exportCollections)
			r.Post("/collections/import", s.importCollections)
			r.Patch("/collections/{name}", s.updateCollection)
			r.Delete("/collections/{name}", s.deleteCollection)

			r.Get("/collections/{name}/records", s.listRecords)
			r.Post("/collections/{name}/records", s.createRecord)
			r.Get("/collections/{name}/records/{id}", s.getRecord)
			r.Patch("/collections/{name}/records/{id}", s.updateRecord)
			r.Delete("/collections/{name}/records/{id}", s.deleteRecord)

			r.Get("/files/{name}/{id}/{filename}", s.getFile)

			r.Get("/settings", s.getSettings)
			r.Patch("/settings", s.patchSettings)

			r.Get("/logs", s.listLogs)
			r.Get("/logs/stats", s.logStats)
			r.Delete("/logs", s.clearLogs)

			r.Get("/jobs", s.listJobs)
			r.Get("/jobs/stats", s.jobStats)
			r.Post("/jobs/retry-all", s.retryAllJobs)
			r.Post("/jobs/{id}/retry", s.retryJob)
			r.Delete("/jobs/{id}", s.deleteJob)
			r.Delete("/jobs", s.clearJobs)

			r.Get("/crons", s.listCrons)
		})
	})
	return r
}

// ---- middleware ----

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Auth:        r.Header.Get("Authorization"),
			RequestID:   r.Header.Get("X-Request-Id"),
			Body:        body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// inject serves queued failures before any handler runs.
func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		for i, f := range s.failures {
			if f.method == r.Method && f.path == r.URL.Path {
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
				s.mu.Unlock()
				w.WriteHeader(f.status)
				_, _ = io.WriteString(w, f.body)
				return
			}
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		need := s.requireAuth
		ok := s.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		s.mu.Unlock()
		if need && !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---- test controls ----

// RequireAuth toggles bearer token checks; on by default.
func (s *Server) RequireAuth(on bool) {
	s.mu.Lock()
	s.requireAuth = on
	s.mu.Unlock()
}

// Fail makes the next request matching method and path answer status with
// the raw body.
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	s.failures = append(s.failures, failure{method: method, path: path, status: status, body: body})
	s.mu.Unlock()
}

// Requests returns the recorded calls.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// ResetRequests drops the recorded calls.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// CountRequests counts recorded calls with the given method and path prefix.
func (s *Server) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// AddAdmin registers an operator account.
func (s *Server) AddAdmin(email, password string) model.Admin {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		panic(err)
	}
	a := model.Admin{ID: model.ID(newID()), Email: email, Name: strings.Split(email, "@")[0]}
	s.mu.Lock()
	s.admins[email] = adminEntry{admin: a, hash: hash}
	s.mu.Unlock()
	return a
}

// IssueToken returns a token the server accepts without a login call.
func (s *Server) IssueToken() string {
	tok := s.sign(model.Admin{ID: "seed"}, time.Hour)
	s.mu.Lock()
	s.tokens[tok] = true
	s.mu.Unlock()
	return tok
}

// AddCollection stores c, assigning an id when it has none.
func (s *Server) AddCollection(c model.Collection) model.Collection {
	if c.ID == "" {
		c.ID = model.ID(newID())
	}
	if c.Type == "" {
		c.Type = model.CollectionBase
	}
	s.mu.Lock()
	s.collections = append(s.collections, c)
	if _, ok := s.records[c.Name]; !ok {
		s.records[c.Name] = []model.Record{}
	}
	s.mu.Unlock()
	return c
}

// Collections returns the stored definitions.
func (s *Server) Collections() []model.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Collection(nil), s.collections...)
}

// AddRecord stores r in collection, assigning bookkeeping fields.
func (s *Server) AddRecord(collection string, r model.Record) model.Record {
	r = r.Clone()
	if r.ID() == "" {
		r[model.KeyID] = newID()
	}
	ts := json.Number(fmt.Sprint(s.now().Unix()))
	r[model.KeyCreatedAt] = ts
	r[model.KeyUpdatedAt] = ts
	s.mu.Lock()
	s.records[collection] = append(s.records[collection], r)
	s.mu.Unlock()
	return r.Clone()
}

// Records returns the stored records of collection.
func (s *Server) Records(collection string) []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Record, 0, len(s.records[collection]))
	for _, r := range s.records[collection] {
		out = append(out, r.Clone())
	}
	return out
}

// File returns stored file content.
func (s *Server) File(collection, id, filename string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[fileKey(collection, id, filename)]
	return b, ok
}

// SetSettings replaces the settings document.
func (s *Server) SetSettings(v model.Settings) {
	s.mu.Lock()
	s.settings = v
	s.mu.Unlock()
}

// AddLog appends a request log entry.
func (s *Server) AddLog(e model.LogEntry) {
	s.mu.Lock()
	if e.ID == "" {
		e.ID = model.ID(newID())
	}
	s.logs = append(s.logs, e)
	s.mu.Unlock()
}

// AddJob appends a job.
func (s *Server) AddJob(j model.Job) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == "" {
		j.ID = model.ID(newID())
	}
	s.jobs = append(s.jobs, j)
	return j
}

// Jobs returns the stored jobs.
func (s *Server) Jobs() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Job(nil), s.jobs...)
}

// AddCron registers a cron entry.
func (s *Server) AddCron(c model.CronEntry) {
	s.mu.Lock()
	s.crons = append(s.crons, c)
	s.mu.Unlock()
}

// ---- helpers ----

func newID() string {
	id, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}
	return id.String()
}

func fileKey(collection, id, filename string) string {
	return collection + "/" + id + "/" + filename
}

func (s *Server) sign(a model.Admin, ttl time.Duration) string {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        newID(),
		Subject:   a.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signKey)
	if err != nil {
		panic(err)
	}
	return tok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return model.DecodeJSON(b, v)
}

// ---- auth ----

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	entry, ok := s.admins[in.Email]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if match, err := crypto.VerifyPassword(in.Password, entry.hash); err != nil || !match {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	tok := s.sign(entry.admin, time.Hour)
	s.mu.Lock()
	s.tokens[tok] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"token": tok, "user": entry.admin})
}
