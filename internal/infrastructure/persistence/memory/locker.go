package memory

import (
	"context"
	"sync"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// Locker is an in-process keyed mutex. Waiters give up when ctx is done or
// after the configured wait, whichever comes first.
type Locker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

// NewLocker creates a locker. wait bounds how long Acquire blocks.
func NewLocker(wait time.Duration) *Locker {
	return &Locker{
		slots: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (l *Locker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire blocks until key is free. The ttl is ignored because an
// in-process holder cannot vanish without releasing.
func (l *Locker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	ch := l.slot(key)

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, shared.WrapError("lock", "Acquire", shared.ErrConcurrentClaimConflict, key, ctx.Err())
	}
}
