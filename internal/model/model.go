// Package model defines the domain entities shared by the console engines,
// the API client and the services.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Bookkeeping keys maintained by the store; never edited and never sent.
const (
	KeyID        = "id"
	KeyCreatedAt = "created_at"
	KeyUpdatedAt = "updated_at"

	// KeyPassword is the reserved payload key for auth collection passwords.
	KeyPassword = "password"
	// KeyPasswordHash is the stored hash of an auth record password.
	KeyPasswordHash = "password_hash"
)

// ID is an opaque identifier assigned by the store. On the wire it may be a
// string or a number; both decode to the same textual form.
type ID string

// UnmarshalJSON accepts JSON strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// CollectionType is either "base" or "auth".
type CollectionType string

const (
	CollectionBase CollectionType = "base"
	CollectionAuth CollectionType = "auth"
)

// Collection is a named, schema-typed group of records.
type Collection struct {
	ID         ID             `json:"id,omitempty"`
	Name       string         `json:"name"`
	Type       CollectionType `json:"type,omitempty"`
	Schema     Schema         `json:"schema"`
	ListRule   *string        `json:"listRule,omitempty"`
	ViewRule   *string        `json:"viewRule,omitempty"`
	CreateRule *string        `json:"createRule,omitempty"`
	UpdateRule *string        `json:"updateRule,omitempty"`
	DeleteRule *string        `json:"deleteRule,omitempty"`
}

// IsAuth reports whether records of the collection carry a write-only password.
func (c Collection) IsAuth() bool { return c.Type == CollectionAuth }

// TypeOrDefault returns the collection type, "base" when unset.
func (c Collection) TypeOrDefault() CollectionType {
	if c.Type == "" {
		return CollectionBase
	}
	return c.Type
}

// Rules returns the five access rules in fixed order with nil mapped to "".
func (c Collection) Rules() [5]string {
	return [5]string{
		deref(c.ListRule),
		deref(c.ViewRule),
		deref(c.CreateRule),
		deref(c.UpdateRule),
		deref(c.DeleteRule),
	}
}

// RuleNames lists the rule keys in the order used by Rules.
var RuleNames = [5]string{"listRule", "viewRule", "createRule", "updateRule", "deleteRule"}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Record is one schema-conforming data item. Numbers are kept as json.Number.
type Record map[string]any

// ID returns the record id in textual form, or "" when absent.
func (r Record) ID() string {
	return ValueString(r[KeyID])
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		out := make(Record, len(r))
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	var out Record
	_ = DecodeJSON(b, &out)
	if out == nil {
		out = Record{}
	}
	return out
}

// Editable returns a copy of the record without bookkeeping keys.
func (r Record) Editable() Record {
	out := r.Clone()
	delete(out, KeyID)
	delete(out, KeyCreatedAt)
	delete(out, KeyUpdatedAt)
	return out
}

// ValueString renders scalar record values as text. Strings are returned
// as-is, json.Number via its literal, nil as "".
func ValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// DecodeJSON unmarshals b into v keeping numbers as json.Number.
func DecodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

// ListQuery carries the record list parameters sent to the store.
type ListQuery struct {
	Page    int
	PerPage int
	Filter  string
	Sort    string
}

// Page is the paginated list envelope used by records, logs and jobs.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"perPage,omitempty"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// RecordPage is one page of records.
type RecordPage = Page[Record]

// FileUpload is a file staged for upload; it is never written into the record value.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExistingFile is the stored value of a file field.
type ExistingFile struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size,omitempty"`
}

// IsImage reports whether the stored file has an image mime type.
func (f ExistingFile) IsImage() bool { return strings.HasPrefix(f.MimeType, "image/") }

// WritePayload is the serialized form state of a record save.
type WritePayload struct {
	Fields map[string]any
	Files  map[string]FileUpload
}

// Multipart reports whether the payload must be sent as multipart form data.
func (p WritePayload) Multipart() bool { return len(p.Files) > 0 }

// Admin is the authenticated operator profile.
type Admin struct {
	ID    ID     `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session is the persisted client auth state.
type Session struct {
	Token     string
	Admin     Admin
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Expired reports whether the session token is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Settings is the opaque server settings document.
type Settings map[string]any

// Stats is an opaque stats summary (logs, jobs).
type Stats map[string]any

// LogEntry is one request log line.
type LogEntry struct {
	ID         ID      `json:"id"`
	Method     string  `json:"method"`
	Path       string  `json:"path"`
	Status     int     `json:"status"`
	DurationMs float64 `json:"duration_ms,omitempty"`
	IP         string  `json:"ip,omitempty"`
	CreatedAt  int64   `json:"created_at"`
}

// LogFilter narrows the log listing.
type LogFilter struct {
	Status string
	Method string
	Path   string
}

// Job is one background job.
type Job struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

// JobFilter narrows the job listing.
type JobFilter struct {
	Status string
	Name   string
}

// CronEntry is one scheduled cron job. NextRun is unix seconds, 0 when unknown.
type CronEntry struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	NextRun  int64  `json:"next_run,omitempty"`
	LastRun  int64  `json:"last_run,omitempty"`
}

// ChangeKind discriminates ImportChange values.
type ChangeKind string

const (
	ChangeCreate   ChangeKind = "create"
	ChangeUpdate   ChangeKind = "update"
	ChangeRename   ChangeKind = "rename"
	ChangeConflict ChangeKind = "conflict"
	// ChangeDelete marks a delete candidate; only applied when the operator opts in.
	ChangeDelete ChangeKind = "delete"
)

// ImportChange is one classified difference between a candidate and the live set.
type ImportChange struct {
	Kind          ChangeKind `json:"type"`
	Name          string     `json:"name"`
	OldName       string     `json:"oldName,omitempty"`
	ID            ID         `json:"id,omitempty"`
	FieldCount    int        `json:"fieldCount,omitempty"`
	SchemaChanged bool       `json:"schemaChanged,omitempty"`
	RulesChanged  bool       `json:"rulesChanged,omitempty"`
	Reason        string     `json:"error,omitempty"`
}
