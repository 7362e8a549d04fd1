package repository

import (
	"context"

	"github.com/and161185/motectl/internal/model"
)

// AuthRepository exchanges credentials for a token.
type AuthRepository interface {
	// Login returns a bearer token and the operator profile.
	Login(ctx context.Context, email, password string) (token string, admin model.Admin, err error)
}

// AdminRepository provides the management views.
type AdminRepository interface {
	GetSettings(ctx context.Context) (model.Settings, error)
	// UpdateSettings patches settings and returns the stored result.
	UpdateSettings(ctx context.Context, s model.Settings) (model.Settings, error)

	ListLogs(ctx context.Context, page, perPage int, f model.LogFilter) (model.Page[model.LogEntry], error)
	LogStats(ctx context.Context) (model.Stats, error)
	ClearLogs(ctx context.Context) error

	ListJobs(ctx context.Context, page, perPage int, f model.JobFilter) (model.Page[model.Job], error)
	JobStats(ctx context.Context) (model.Stats, error)
	RetryJob(ctx context.Context, id string) error
	// RetryAllJobs requeues failed jobs and returns how many were queued.
	RetryAllJobs(ctx context.Context) (int, error)
	DeleteJob(ctx context.Context, id string) error
	// ClearJobs deletes jobs with the given status, or all when status is "".
	ClearJobs(ctx context.Context, status string) error

	ListCrons(ctx context.Context) ([]model.CronEntry, error)
}

// Keys of the persisted client state.
const (
	KeyToken = "motebase_admin_token"
	KeyUser  = "motebase_admin_user"
)

// SessionStore is the client-local key-value store holding auth state.
type SessionStore interface {
	// Get returns errs.ErrNotFound for a missing key.
	Get(ctx context.Context, key string) (string, error)
	// Set upserts several keys atomically.
	Set(ctx context.Context, kv map[string]string) error
	// Delete removes the keys atomically.
	Delete(ctx context.Context, keys ...string) error
}
