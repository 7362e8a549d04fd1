package limiter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/motectl/internal/repository/sqlite"
)

func newTestLimiter(t *testing.T, server string, clock *time.Time) *SQL {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	l := NewSQL(store.DB(), server, 5*time.Minute, 3, 10*time.Minute)
	l.now = func() time.Time { return *clock }
	return l
}

func TestAllow_NoRow_Allows(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	l := newTestLimiter(t, "http://a", &now)

	ok, wait, err := l.Allow(context.Background(), "ops@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, wait)
}

func TestFailure_BlocksAtThreshold(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	l := newTestLimiter(t, "http://a", &now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		blocked, _, err := l.Failure(ctx, "ops@example.com")
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, wait, err := l.Failure(ctx, "OPS@example.com ")
	require.NoError(t, err)
	require.True(t, blocked, "email is normalized")
	require.Equal(t, 10*time.Minute, wait)

	now = now.Add(time.Minute)
	ok, wait, err := l.Allow(ctx, "ops@example.com")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 9*time.Minute, wait)

	now = now.Add(10 * time.Minute)
	ok, _, err = l.Allow(ctx, "ops@example.com")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFailure_WindowRestartsCount(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	l := newTestLimiter(t, "http://a", &now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := l.Failure(ctx, "ops@example.com")
		require.NoError(t, err)
	}
	now = now.Add(6 * time.Minute)
	blocked, _, err := l.Failure(ctx, "ops@example.com")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestSuccess_Resets(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	l := newTestLimiter(t, "http://a", &now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := l.Failure(ctx, "ops@example.com")
		require.NoError(t, err)
	}
	require.NoError(t, l.Success(ctx, "ops@example.com"))
	blocked, _, err := l.Failure(ctx, "ops@example.com")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestScope_SeparatesServers(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	a := NewSQL(store.DB(), "http://a", time.Minute, 1, time.Minute)
	b := NewSQL(store.DB(), "http://b", time.Minute, 1, time.Minute)
	a.now = func() time.Time { return now }
	b.now = a.now
	ctx := context.Background()

	blocked, _, err := a.Failure(ctx, "ops@example.com")
	require.NoError(t, err)
	require.True(t, blocked)

	ok, _, err := b.Allow(ctx, "ops@example.com")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHashServer_Determinism(t *testing.T) {
	t.Parallel()
	a := HashServer("http://127.0.0.1:8090/")
	b := HashServer("HTTP://127.0.0.1:8090")
	c := HashServer("http://example.com")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 32)
}
