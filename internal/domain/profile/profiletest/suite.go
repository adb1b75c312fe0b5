// Package profiletest holds the behavioural contract every
// profile.Repository implementation must satisfy.
package profiletest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// Factory returns a fresh, empty repository for one sub-test.
type Factory func(t *testing.T) profile.Repository

var at = time.Date(2025, 4, 7, 9, 30, 0, 0, time.UTC)

func mustIdentity(t *testing.T, email, session string) profile.Identity {
	t.Helper()
	id, err := profile.NewIdentity(email, session)
	require.NoError(t, err)
	return id
}

// RunRepositorySuite runs the contract against repositories built by newRepo.
func RunRepositorySuite(t *testing.T, newRepo Factory) {
	t.Run("GetUnknown", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(context.Background(), mustIdentity(t, "nobody@example.com", ""))
		assert.ErrorIs(t, err, shared.ErrProfileNotFound)
	})

	t.Run("UpdateCreatesAndPersists", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := mustIdentity(t, "Ada@Example.com", "sess-1")

		var sawExists bool
		saved, err := repo.Update(ctx, id, func(p *profile.Profile, exists bool) error {
			sawExists = exists
			p.XP.EnterSeason("2025-W10")
			if _, err := p.XP.Credit(25, progress.SourceStreakClaim, at); err != nil {
				return err
			}
			p.Streak.Current = 1
			p.Streak.Longest = 1
			last := at
			p.Streak.LastActiveAt = &last
			p.MarkCompleted("1990")
			p.LeagueTier = league.Silver
			p.Source = "homepage_streak"
			return nil
		})
		require.NoError(t, err)
		assert.False(t, sawExists)
		assert.Equal(t, "email:ada@example.com", saved.Key)
		assert.Equal(t, int64(1), saved.Version)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(25), got.XP.Total)
		assert.Equal(t, int64(25), got.XP.Weekly)
		assert.Equal(t, "2025-W10", got.XP.Season)
		require.Len(t, got.XP.Recent, 1)
		assert.Equal(t, progress.SourceStreakClaim, got.XP.Recent[0].Source)
		assert.Equal(t, 1, got.Streak.Current)
		require.NotNil(t, got.Streak.LastActiveAt)
		assert.True(t, at.Equal(*got.Streak.LastActiveAt))
		assert.Equal(t, []string{"1990"}, got.CompletedMissions)
		assert.Equal(t, league.Silver, got.LeagueTier)
		assert.Equal(t, "ada@example.com", got.Email)
		assert.Equal(t, "sess-1", got.SessionID)
		assert.Equal(t, "homepage_streak", got.Source)

		_, err = repo.Update(ctx, id, func(p *profile.Profile, exists bool) error {
			sawExists = exists
			return nil
		})
		require.NoError(t, err)
		assert.True(t, sawExists)
		got, err = repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("UpdateErrorAborts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := mustIdentity(t, "", "sess-abort")
		boom := errors.New("boom")

		_, err := repo.Update(ctx, id, func(p *profile.Profile, exists bool) error {
			p.Streak.Current = 99
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.Get(ctx, id)
		assert.ErrorIs(t, err, shared.ErrProfileNotFound)
	})

	t.Run("ConcurrentUpdatesSerialize", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := mustIdentity(t, "", "sess-race")

		const writers = 16
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Update(ctx, id, func(p *profile.Profile, _ bool) error {
					_, err := p.XP.Credit(1, progress.SourceSync, at)
					return err
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(writers), got.XP.Total)
		assert.Equal(t, int64(writers), got.Version)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := mustIdentity(t, "", "sess-del")

		_, err := repo.Update(ctx, id, func(*profile.Profile, bool) error { return nil })
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, id))
		_, err = repo.Get(ctx, id)
		assert.ErrorIs(t, err, shared.ErrProfileNotFound)

		assert.NoError(t, repo.Delete(ctx, id))
	})

	t.Run("ListPages", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			id := mustIdentity(t, "", fmt.Sprintf("s%d", i))
			_, err := repo.Update(ctx, id, func(*profile.Profile, bool) error { return nil })
			require.NoError(t, err)
		}

		first, err := repo.List(ctx, "", 3)
		require.NoError(t, err)
		require.Len(t, first, 3)
		assert.Equal(t, "session:s0", first[0].Key)
		assert.Equal(t, "session:s2", first[2].Key)

		rest, err := repo.List(ctx, first[2].Key, 3)
		require.NoError(t, err)
		require.Len(t, rest, 2)
		assert.Equal(t, "session:s4", rest[1].Key)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, newRepo(t).Ping(context.Background()))
	})
}
