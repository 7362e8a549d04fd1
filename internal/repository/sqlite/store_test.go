package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/repository"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "motectl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGetDelete(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()

	_, err := s.Get(ctx, repository.KeyToken)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.Set(ctx, map[string]string{
		repository.KeyToken: "tok",
		repository.KeyUser:  `{"email":"a@b.io"}`,
	}))
	v, err := s.Get(ctx, repository.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "tok", v)

	require.NoError(t, s.Set(ctx, map[string]string{repository.KeyToken: "tok2"}))
	v, err = s.Get(ctx, repository.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "tok2", v)

	require.NoError(t, s.Delete(ctx, repository.KeyToken, repository.KeyUser))
	_, err = s.Get(ctx, repository.KeyToken)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.Get(ctx, repository.KeyUser)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "motectl.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, map[string]string{"k": "v"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}
