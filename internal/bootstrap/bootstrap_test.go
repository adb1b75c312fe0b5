package bootstrap

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/config"
	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/sqlite"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

func loadConfig(t *testing.T, environ map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(environ)
	require.NoError(t, err)
	return cfg
}

func TestOpenStorage_DemoUsesMemory(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	s, err := OpenStorage(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.True(t, s.Demo)
	assert.Equal(t, config.DriverDemo, s.Driver)
	assert.IsType(t, &memory.ProfileRepository{}, s.Profiles)
	assert.IsType(t, &memory.StandingsRepository{}, s.Standings)
	assert.Nil(t, s.Redis)
}

func TestOpenStorage_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	cfg := loadConfig(t, map[string]string{"STORAGE_DRIVER": "sqlite", "SQLITE_PATH": path})

	s, err := OpenStorage(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)

	assert.False(t, s.Demo)
	assert.IsType(t, &sqlite.Store{}, s.Profiles)

	ctx := context.Background()
	_, err = s.Profiles.Update(ctx, profile.Identity{SessionID: "s1"}, func(*profile.Profile, bool) error { return nil })
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestOpenStorage_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	cfg := loadConfig(t, map[string]string{
		"STORAGE_DRIVER":   "memory",
		"REDIS_HOST":       host,
		"REDIS_PORT":       port,
		"REDIS_KEY_PREFIX": "boot:",
	})
	s, err := OpenStorage(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NotNil(t, s.Redis)
	assert.IsType(t, &redis.StandingsStore{}, s.Standings)
	assert.IsType(t, &redis.RunStore{}, s.Runs)

	ctx := context.Background()
	season := league.SeasonFor(time.Now(), time.UTC).ID
	require.NoError(t, s.Standings.AddWeeklyXP(ctx, season, league.Bronze, "session:a", 15))
	assert.True(t, mr.Exists("boot:league:"+season+":bronze"))

	release, err := s.Locker.Acquire(ctx, "identity:x", time.Second)
	require.NoError(t, err)
	release()
}

func TestOpenStorage_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	mr.Close()

	cfg := loadConfig(t, map[string]string{
		"STORAGE_DRIVER":     "memory",
		"REDIS_HOST":         host,
		"REDIS_PORT":         port,
		"REDIS_DIAL_TIMEOUT": "200ms",
	})
	_, err = OpenStorage(context.Background(), cfg, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestNewLogger(t *testing.T) {
	log := NewLogger(config.LogConfig{Level: "debug", Format: "text"}, "svc", "1.0")
	assert.True(t, log.Enabled(logger.LevelDebug))
}
