// Package redis implements the Redis-backed storage ports: weekly league
// standings, in-flight mission runs and the per-identity claim lock.
//
// Key components:
//   - Client: connection wrapper with key helpers and error mapping
//   - Locker: SET NX PX lock with token-checked release
//   - StandingsStore: cohort sorted sets and previous-rank hashes
//   - RunStore: mission runs as JSON with a TTL
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix namespaces every key written by this process.
	KeyPrefix string

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		KeyPrefix:    "lq:",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// KEY LAYOUT
// ══════════════════════════════════════════════════════════════════════════════

const (
	prefixLeague = "league:"
	prefixRun    = "run:"
	prefixLock   = "lock:"
)

// Keys builds namespaced keys.
type Keys struct {
	prefix string
}

// CohortKey is the sorted set of weekly XP for one cohort.
func (k Keys) CohortKey(season, tier string) string {
	return k.prefix + prefixLeague + season + ":" + tier
}

// PreviousRanksKey is the hash of identity to last season's rank.
func (k Keys) PreviousRanksKey(season string) string {
	return k.prefix + prefixLeague + season + ":prev"
}

// SeasonsKey is the set of seasons that received any XP.
func (k Keys) SeasonsKey() string {
	return k.prefix + prefixLeague + "seasons"
}

// RolledKey marks a cohort whose rollover has been claimed.
func (k Keys) RolledKey(season, tier string) string {
	return k.CohortKey(season, tier) + ":rolled"
}

// RunKey holds one mission run.
func (k Keys) RunKey(id string) string {
	return k.prefix + prefixRun + id
}

// LockKey guards a resource.
func (k Keys) LockKey(resource string) string {
	return k.prefix + prefixLock + resource
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client wraps a go-redis client with the key layout.
type Client struct {
	rdb  redis.UniversalClient
	keys Keys
	log  *logger.Logger
}

// New dials Redis and verifies the connection.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, mapError("Ping", err)
	}

	return NewFromClient(rdb, cfg.KeyPrefix, log), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb redis.UniversalClient, keyPrefix string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		rdb:  rdb,
		keys: Keys{prefix: keyPrefix},
		log:  log.With(logger.Component("redis")),
	}
}

// Keys returns the key builder.
func (c *Client) Keys() Keys { return c.keys }

// Ping checks if Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return mapError("Ping", c.rdb.Ping(ctx).Err())
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// mapError turns transport failures into ErrStorageUnavailable. redis.Nil
// passes through untouched so callers can test for it.
func mapError(op string, err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isConnectionError(err) {
		return shared.WrapError("redis", op, shared.ErrStorageUnavailable, "redis unreachable", err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}

func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
