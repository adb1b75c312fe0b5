package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/profile/profiletest"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "profiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Contract(t *testing.T) {
	profiletest.RunRepositorySuite(t, func(t *testing.T) profile.Repository {
		return openTestStore(t)
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profiles.db")

	store, err := Open(path)
	require.NoError(t, err)
	id, err := profile.NewIdentity("", "sess-1")
	require.NoError(t, err)
	_, err = store.Update(ctx, id, func(p *profile.Profile, exists bool) error {
		p.XP.Total = 42
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.XP.Total)
	assert.Equal(t, int64(1), got.Version)
}

func TestStore_ClosedIsUnavailable(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())

	err := store.Ping(context.Background())
	assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
}
