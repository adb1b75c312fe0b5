package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/logger"
	"github.com/legacy-quest/progression-engine/pkg/retry"
)

// TTLClaimLock bounds how long a crashed holder can block an identity.
const TTLClaimLock = 10 * time.Second

var errLockHeld = errors.New("lock held")

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance Redis lock.
type Locker struct {
	client  *Client
	retrier *retry.Retrier
}

// NewLocker creates a Locker. A nil retrier uses retry.LockRetrier.
func NewLocker(client *Client, retrier *retry.Retrier) *Locker {
	if retrier == nil {
		retrier = retry.LockRetrier()
	}
	return &Locker{client: client, retrier: retrier}
}

// Acquire takes the lock for key, polling until the retrier gives up.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = TTLClaimLock
	}
	lockKey := l.client.keys.LockKey(key)
	token := uuid.NewString()

	err := l.retrier.Do(ctx, func(ctx context.Context) error {
		ok, err := l.client.rdb.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return retry.Permanent(mapError("SetNX", err))
		}
		if !ok {
			return retry.Retryable(errLockHeld)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errLockHeld) || errors.Is(err, context.DeadlineExceeded) {
			return nil, shared.WrapError("redis", "Acquire", shared.ErrConcurrentClaimConflict, key, err)
		}
		return nil, err
	}

	release := func() {
		// Release must run even when the request context is gone.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client.rdb, []string{lockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.client.log.Warn("lock release failed", logger.String("key", lockKey), logger.Err(err))
		}
	}
	return release, nil
}
