package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/retry"
)

func setupClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb, "test:", nil), mr
}

func TestKeys(t *testing.T) {
	k := Keys{prefix: "lq:"}
	assert.Equal(t, "lq:league:2025-W10:gold", k.CohortKey("2025-W10", "gold"))
	assert.Equal(t, "lq:league:2025-W10:prev", k.PreviousRanksKey("2025-W10"))
	assert.Equal(t, "lq:league:2025-W10:gold:rolled", k.RolledKey("2025-W10", "gold"))
	assert.Equal(t, "lq:run:abc", k.RunKey("abc"))
	assert.Equal(t, "lq:lock:fp", k.LockKey("fp"))
}

func TestStandingsStore(t *testing.T) {
	ctx := context.Background()
	client, mr := setupClient(t)
	store := NewStandingsStore(client, 1, 1, time.UTC)

	require.NoError(t, store.AddWeeklyXP(ctx, "2025-W10", league.Gold, "b", 20))
	require.NoError(t, store.AddWeeklyXP(ctx, "2025-W10", league.Gold, "a", 20))
	require.NoError(t, store.AddWeeklyXP(ctx, "2025-W10", league.Gold, "a", 5))
	require.NoError(t, store.SetPreviousRanks(ctx, "2025-W10", map[string]int{"b": 2}))

	assert.True(t, mr.Exists("test:league:2025-W10:gold"))

	c, err := store.Cohort(ctx, "2025-W10", league.Gold)
	require.NoError(t, err)
	require.Equal(t, 2, c.Size())
	assert.Equal(t, "a", c.Members[0].Identity)
	assert.Equal(t, int64(25), c.Members[0].WeeklyXP)
	assert.Zero(t, c.Members[0].PreviousRank)
	assert.Equal(t, 2, c.Members[1].PreviousRank)

	ranked := c.Ranked()
	assert.Equal(t, "a", ranked[0].Identity)
	assert.Equal(t, league.ZonePromotion, ranked[0].Zone)

	seasons, err := store.Seasons(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-W10"}, seasons)

	first, err := store.MarkRolledOver(ctx, "2025-W10", league.Gold)
	require.NoError(t, err)
	assert.True(t, first)
	second, err := store.MarkRolledOver(ctx, "2025-W10", league.Gold)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestStandingsStore_EmptyCohort(t *testing.T) {
	client, _ := setupClient(t)
	store := NewStandingsStore(client, 3, 5, time.UTC)

	c, err := store.Cohort(context.Background(), "2025-W10", league.Bronze)
	require.NoError(t, err)
	assert.Zero(t, c.Size())

	_, err = store.Cohort(context.Background(), "garbage", league.Bronze)
	assert.ErrorIs(t, err, shared.ErrInvalidSeason)
}

func TestRunStore(t *testing.T) {
	ctx := context.Background()
	client, mr := setupClient(t)
	store := NewRunStore(client, time.Hour)

	m := &mission.Mission{Key: "2008", Kind: mission.KindScripted, Options: []mission.Option{{ID: "gold"}}}
	run := mission.NewRun("run-1", m, "session:abc", "growth-guru", time.Now())
	require.NoError(t, store.Save(ctx, run))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "2008", got.MissionKey)
	assert.Equal(t, "session:abc", got.Identity)

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "run-1")
	assert.ErrorIs(t, err, shared.ErrRunNotFound)

	require.NoError(t, store.Save(ctx, run))
	require.NoError(t, store.Delete(ctx, "run-1"))
	_, err = store.Get(ctx, "run-1")
	assert.ErrorIs(t, err, shared.ErrRunNotFound)
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	client, mr := setupClient(t)
	fast := retry.New(retry.WithMaxAttempts(2), retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(time.Millisecond))
	locker := NewLocker(client, fast)

	release, err := locker.Acquire(ctx, "fp1", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:fp1"))

	_, err = locker.Acquire(ctx, "fp1", time.Second)
	assert.ErrorIs(t, err, shared.ErrConcurrentClaimConflict)

	release()
	assert.False(t, mr.Exists("test:lock:fp1"))

	again, err := locker.Acquire(ctx, "fp1", time.Second)
	require.NoError(t, err)
	again()
}

func TestLocker_ReleaseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	client, mr := setupClient(t)
	locker := NewLocker(client, nil)

	release, err := locker.Acquire(ctx, "fp2", time.Second)
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	require.NoError(t, mr.Set("test:lock:fp2", "someone-else"))
	release()

	v, err := mr.Get("test:lock:fp2")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestPing_Unavailable(t *testing.T) {
	client, mr := setupClient(t)
	mr.Close()

	err := client.Ping(context.Background())
	assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
}
