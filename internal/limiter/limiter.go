// Package limiter throttles operator logins after repeated failures.
package limiter

import (
	"context"
	"crypto/sha256"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, email string) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, email string) error
	// Failure records a rejected attempt; may place a temporary block.
	Failure(ctx context.Context, email string) (bool, time.Duration, error)
}

// Defaults used by the CLI.
const (
	DefaultWindow   = 15 * time.Minute
	DefaultMaxFails = 5
	DefaultBlockFor = 5 * time.Minute
)

// HashServer returns a stable scope for a server URL so counters of
// different servers never mix.
func HashServer(server string) []byte {
	h := sha256.Sum256([]byte(strings.TrimRight(strings.ToLower(server), "/")))
	return h[:]
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
