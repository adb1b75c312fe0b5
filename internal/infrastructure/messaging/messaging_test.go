package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/pkg/retry"
)

func xpEvent(identity string, amount int64) shared.Event {
	return shared.NewXPCreditedEvent(identity, amount, "test", amount, 1, false, "bronze", time.Now())
}

func fastRetrier(attempts int) *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(attempts),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(2*time.Millisecond),
		retry.WithRetryIf(func(err error) bool { return !errors.Is(err, ErrHandlerTimeout) }),
	)
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})

	var typed, all []string
	require.NoError(t, bus.Subscribe(shared.EventXPCredited, func(e shared.Event) error {
		typed = append(typed, e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, string(e.EventType()))
		return nil
	}))

	require.NoError(t, bus.Publish(xpEvent("session:a", 10)))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("session:a", 1, 2, time.Now())))

	assert.Equal(t, []string{"session:a"}, typed)
	assert.Equal(t, []string{"progress.xp_credited", "progress.level_up"}, all)
}

func TestInMemoryEventBus_HandlerErrorsDoNotReachPublisher(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("kaboom") }))

	assert.NoError(t, bus.Publish(xpEvent("session:a", 10)))
}

func TestInMemoryEventBus_AsyncWaitAndClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var count atomic.Int64
	require.NoError(t, bus.Subscribe(shared.EventXPCredited, func(e shared.Event) error {
		count.Add(e.(shared.XPCreditedEvent).Amount)
		return nil
	}))

	for i := 0; i < 50; i++ {
		require.NoError(t, bus.Publish(xpEvent("session:a", 2)))
	}
	bus.Wait()
	assert.Equal(t, int64(100), count.Load())

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(xpEvent("session:a", 1)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventXPCredited, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	assert.ErrorIs(t, bus.Subscribe(shared.EventXPCredited, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Retrier: fastRetrier(3), DeadLetterQueueSize: 10})

	var calls int
	require.NoError(t, d.Register(shared.EventXPCredited, "flaky", func(shared.Event) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, d.Dispatch(xpEvent("session:a", 10)))
	assert.Equal(t, 3, calls)
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_DeadLettersAfterExhaustion(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Retrier: fastRetrier(2), DeadLetterQueueSize: 10})

	require.NoError(t, d.Register(shared.EventXPCredited, "broken", func(shared.Event) error {
		return errors.New("down")
	}))

	err := d.Dispatch(xpEvent("session:a", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	entry, ok := d.DeadLetterQueue().Pop()
	require.True(t, ok)
	assert.Equal(t, "broken", entry.HandlerName)
	assert.Equal(t, 2, entry.Attempts)
}

func TestDispatcher_PanicIsNotRetried(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Retrier: fastRetrier(5)})

	var calls int
	require.NoError(t, d.Register(shared.EventXPCredited, "panicky", func(shared.Event) error {
		calls++
		panic("nope")
	}))

	err := d.Dispatch(xpEvent("session:a", 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Equal(t, 1, calls)
}

func TestDispatcher_Timeout(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Retrier: fastRetrier(3)})

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, d.RegisterHandler(shared.EventXPCredited, HandlerRegistration{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Handler: func(shared.Event) error {
			<-release
			return nil
		},
	}))

	err := d.Dispatch(xpEvent("session:a", 10))
	assert.ErrorIs(t, err, ErrHandlerTimeout)
}

func TestDispatcher_StartSubscribesToBus(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	d := NewDispatcher(DispatcherConfig{EventBus: bus, Retrier: fastRetrier(1)})

	var mu sync.Mutex
	var seen []string
	require.NoError(t, d.Register(shared.EventStreakClaimed, "recorder", func(e shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.AggregateID())
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewStreakClaimedEvent("session:b", 2, 10, false, time.Now())))
	require.NoError(t, bus.Publish(xpEvent("session:c", 5)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"session:b"}, seen)
}

func TestDeadLetterQueue_EvictsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)
	q.Add(DeadLetterEntry{HandlerName: "a"})
	q.Add(DeadLetterEntry{HandlerName: "b"})
	q.Add(DeadLetterEntry{HandlerName: "c"})

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)
}
