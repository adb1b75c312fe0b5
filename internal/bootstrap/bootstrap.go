// Package bootstrap turns a config.Config into the running infrastructure
// shared by the server and admin binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/legacy-quest/progression-engine/config"
	"github.com/legacy-quest/progression-engine/internal/application/command"
	"github.com/legacy-quest/progression-engine/internal/domain/league"
	"github.com/legacy-quest/progression-engine/internal/domain/mission"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/sqlite"
	"github.com/legacy-quest/progression-engine/pkg/logger"
	"github.com/legacy-quest/progression-engine/pkg/retry"
)

// NewLogger builds the process logger from the log settings.
func NewLogger(cfg config.LogConfig, appName, version string) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stdout
	opts.Level = logger.ParseLevel(cfg.Level)
	if strings.EqualFold(cfg.Format, "text") {
		opts.Format = logger.FormatText
	}
	return logger.New(opts).With(
		logger.String("service", appName),
		logger.String("version", version),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// Storage is the set of stores the application layer runs on.
type Storage struct {
	Driver    string
	Profiles  profile.Repository
	Standings league.StandingsRepository
	Runs      mission.RunRepository
	Locker    command.Locker

	// Postgres is set for the postgres driver; admin migrations need it.
	Postgres *postgres.Connection

	// Redis is set when REDIS_HOST is configured.
	Redis *redis.Client

	// Demo reports that no profile storage is configured.
	Demo bool

	closers []func() error
}

// Close releases every opened backend in reverse order.
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenStorage connects the profile store selected by the driver and, when
// configured, Redis for locks, standings and mission runs. Without Redis
// those live in process memory, which is only correct for a single
// instance.
func OpenStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Storage, error) {
	s := &Storage{Driver: cfg.StorageDriver()}

	if err := s.openProfiles(ctx, cfg, log); err != nil {
		_ = s.Close()
		return nil, err
	}

	if cfg.Redis.Enabled() {
		client, err := redis.New(ctx, redisConfig(cfg.Redis), log)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.Redis = client
		s.closers = append(s.closers, client.Close)
		s.Locker = redis.NewLocker(client, retry.LockRetrier())
		s.Standings = redis.NewStandingsStore(client, cfg.League.PromotionSlots, cfg.League.RelegationSlots, cfg.App.Location)
		s.Runs = redis.NewRunStore(client, cfg.Game.RunTTL)
		log.Info("redis connected", logger.String("addr", redisConfig(cfg.Redis).Addr()))
		return s, nil
	}

	log.Warn("redis not configured, locks and standings are process local")
	s.Locker = memory.NewLocker(cfg.Game.LockWait)
	s.Standings = memory.NewStandingsRepository(cfg.League.PromotionSlots, cfg.League.RelegationSlots, cfg.App.Location)
	s.Runs = memory.NewRunStore(cfg.Game.RunTTL)
	return s, nil
}

func (s *Storage) openProfiles(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	switch s.Driver {
	case config.DriverPostgres:
		conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Postgres), log)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		s.Postgres = conn
		s.closers = append(s.closers, func() error { conn.Close(); return nil })

		if cfg.Postgres.AutoMigrate {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied", logger.Int("count", applied))
		}
		s.Profiles = postgres.NewProfileRepository(conn)

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, store.Close)
		s.Profiles = store

	case config.DriverMemory:
		s.Profiles = memory.NewProfileRepository()

	case config.DriverDemo:
		// Mission routes still need somewhere to keep progress.
		s.Demo = true
		s.Profiles = memory.NewProfileRepository()

	default:
		return fmt.Errorf("unknown storage driver %q", s.Driver)
	}

	log.Info("profile storage ready", logger.String("driver", s.Driver), logger.Bool("demo", s.Demo))
	return nil
}

func postgresConfig(c config.PostgresConfig) postgres.Config {
	return postgres.Config{
		URL:             c.URL,
		Host:            c.Host,
		Port:            c.Port,
		Database:        c.Database,
		User:            c.User,
		Password:        c.Password,
		SSLMode:         c.SSLMode,
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
		ConnectTimeout:  c.ConnectTimeout,
	}
}

func redisConfig(c config.RedisConfig) redis.Config {
	return redis.Config{
		Host:         c.Host,
		Port:         c.Port,
		Password:     c.Password,
		DB:           c.DB,
		KeyPrefix:    c.KeyPrefix,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}
