package limiter

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQL is a limiter over the login_limiter table of the local state
// database, with a sliding failure window and lockout.
type SQL struct {
	db       querier
	scope    []byte
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ Limiter = (*SQL)(nil)

// NewSQL constructs a limiter scoped to one server.
func NewSQL(db querier, server string, window time.Duration, maxFails int, blockFor time.Duration) *SQL {
	return &SQL{
		db:       db,
		scope:    HashServer(server),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *SQL) Allow(ctx context.Context, email string) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM login_limiter WHERE email = ? AND scope = ?`
	var blockedUntil int64
	err := l.db.QueryRowContext(ctx, q, normalize(email), l.scope).Scan(&blockedUntil)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	}
	until := time.Unix(blockedUntil, 0)
	if now := l.now(); until.After(now) {
		return false, until.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for the email.
func (l *SQL) Success(ctx context.Context, email string) error {
	const q = `
INSERT INTO login_limiter (email, scope, fail_count, blocked_until, updated_at)
VALUES (?, ?, 0, 0, ?)
ON CONFLICT (email, scope)
DO UPDATE SET fail_count = 0, blocked_until = 0, updated_at = excluded.updated_at`
	_, err := l.db.ExecContext(ctx, q, normalize(email), l.scope, l.now().Unix())
	return err
}

// Failure records a rejected attempt. Failures older than the window start
// a new count; reaching maxFails blocks until now+blockFor.
func (l *SQL) Failure(ctx context.Context, email string) (bool, time.Duration, error) {
	now := l.now()

	const q = `
INSERT INTO login_limiter (email, scope, fail_count, blocked_until, updated_at)
VALUES (?, ?, 1, 0, ?)
ON CONFLICT (email, scope) DO UPDATE
SET
  fail_count = CASE WHEN excluded.updated_at - login_limiter.updated_at > ? THEN 1 ELSE login_limiter.fail_count + 1 END,
  updated_at = excluded.updated_at
RETURNING fail_count`
	var fails int
	err := l.db.QueryRowContext(ctx, q, normalize(email), l.scope, now.Unix(), int64(l.window/time.Second)).Scan(&fails)
	if err != nil {
		return false, 0, err
	}
	if fails < l.maxFails {
		return false, 0, nil
	}
	const upd = `UPDATE login_limiter SET blocked_until = ? WHERE email = ? AND scope = ?`
	if _, err := l.db.ExecContext(ctx, upd, now.Add(l.blockFor).Unix(), normalize(email), l.scope); err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
