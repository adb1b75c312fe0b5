package messaging

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/metrics"
	"github.com/legacy-quest/progression-engine/pkg/logger"
	"github.com/legacy-quest/progression-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher routes events from the bus to named handlers. Each handler runs
// through the middleware chain and is retried with backoff; events that
// still fail land in the dead letter queue.
type Dispatcher struct {
	eventBus    shared.EventBus
	handlers    map[shared.EventType][]HandlerRegistration
	middlewares []Middleware
	retrier     *retry.Retrier
	deadLetterQ *DeadLetterQueue
	log         *logger.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// HandlerRegistration contains handler metadata.
type HandlerRegistration struct {
	Name    string
	Handler shared.EventHandler
	Timeout time.Duration
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	EventBus shared.EventBus

	// Retrier is applied per handler. Errors wrapped with retry.Permanent
	// are not retried.
	Retrier *retry.Retrier

	// DeadLetterQueueSize caps the number of retained failures. Zero
	// disables the queue.
	DeadLetterQueueSize int

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// DefaultRetrier retries every handler error except permanent ones.
func DefaultRetrier() *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(100*time.Millisecond),
		retry.WithMaxDelay(2*time.Second),
		retry.WithRetryIf(func(err error) bool { return !errors.Is(err, ErrHandlerTimeout) }),
	)
}

// NewDispatcher creates a new event dispatcher with the recovery, logging
// and metrics middlewares installed.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = logger.Discard()
	}
	if config.Retrier == nil {
		config.Retrier = DefaultRetrier()
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := config.Logger.With(logger.Component("dispatcher"))

	d := &Dispatcher{
		eventBus: config.EventBus,
		handlers: make(map[shared.EventType][]HandlerRegistration),
		retrier:  config.Retrier,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	if config.DeadLetterQueueSize > 0 {
		d.deadLetterQ = NewDeadLetterQueue(config.DeadLetterQueueSize)
	}

	d.Use(RecoveryMiddleware(log))
	d.Use(LoggingMiddleware(log))
	d.Use(MetricsMiddleware(config.Metrics))
	return d
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// RegisterHandler registers a handler for an event type.
func (d *Dispatcher) RegisterHandler(eventType shared.EventType, reg HandlerRegistration) error {
	if reg.Handler == nil {
		return ErrNilHandler
	}
	if reg.Name == "" {
		reg.Name = fmt.Sprintf("%s-handler-%d", eventType, len(d.handlers[eventType]))
	}
	if reg.Timeout <= 0 {
		reg.Timeout = 10 * time.Second
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], reg)
	d.log.Debug("registered handler",
		logger.String("event_type", string(eventType)),
		logger.String("handler", reg.Name),
	)
	return nil
}

// Register is a convenience method for simple handler registration.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{Name: name, Handler: handler})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Use adds middleware to the dispatcher. The first middleware added is the
// outermost.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// RecoveryMiddleware recovers from panics in handlers.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panic recovered",
						logger.String("event_type", string(event.EventType())),
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())),
					)
					err = retry.Permanent(fmt.Errorf("%w: %v", ErrHandlerPanic, r))
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs handler execution.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)

			fields := []logger.Field{
				logger.String("event_type", string(event.EventType())),
				logger.String("aggregate_id", event.AggregateID()),
				logger.Latency(time.Since(start)),
			}
			if err != nil {
				log.Warn("handler failed", append(fields, logger.Err(err))...)
			} else {
				log.Debug("handler completed", fields...)
			}
			return err
		}
	}
}

// MetricsMiddleware records handler latency and outcome.
func MetricsMiddleware(m *metrics.Metrics) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			m.EventHandled(string(event.EventType()), time.Since(start), err)
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT DISPATCHING
// ══════════════════════════════════════════════════════════════════════════════

// Start subscribes the dispatcher to every event on the bus.
func (d *Dispatcher) Start() error {
	if d.eventBus == nil {
		return errors.New("dispatcher: no event bus")
	}
	return d.eventBus.SubscribeAll(d.Dispatch)
}

// Dispatch runs every handler registered for the event in registration
// order and joins their final errors.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	d.mu.RLock()
	handlers := append([]HandlerRegistration(nil), d.handlers[event.EventType()]...)
	middlewares := append([]Middleware(nil), d.middlewares...)
	d.mu.RUnlock()

	var errs []error
	for _, reg := range handlers {
		if err := d.executeHandler(event, reg, middlewares); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) executeHandler(event shared.Event, reg HandlerRegistration, middlewares []Middleware) error {
	handler := withTimeout(reg.Handler, reg.Timeout)
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	attempts := 0
	err := d.retrier.Do(d.ctx, func(context.Context) error {
		attempts++
		return handler(event)
	})
	if err == nil {
		return nil
	}

	if d.deadLetterQ != nil {
		d.deadLetterQ.Add(DeadLetterEntry{
			Event:       event,
			HandlerName: reg.Name,
			Error:       err,
			Attempts:    attempts,
			FailedAt:    time.Now(),
		})
	}
	d.log.Error("handler gave up",
		logger.String("handler", reg.Name),
		logger.String("event_type", string(event.EventType())),
		logger.Int("attempts", attempts),
		logger.Err(err),
	)
	return fmt.Errorf("handler %s failed after %d attempts: %w", reg.Name, attempts, err)
}

func withTimeout(next shared.EventHandler, timeout time.Duration) shared.EventHandler {
	return func(event shared.Event) error {
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- retry.Permanent(fmt.Errorf("%w: %v", ErrHandlerPanic, r))
				}
			}()
			done <- next(event)
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case err := <-done:
			return err
		case <-timer.C:
			return fmt.Errorf("%w after %v", ErrHandlerTimeout, timeout)
		}
	}
}

// Stop cancels in-flight retries.
func (d *Dispatcher) Stop() error {
	d.cancel()
	d.log.Info("dispatcher stopped")
	return nil
}

// DeadLetterQueue returns the dead letter queue, or nil when disabled.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetterQ
}

// ErrHandlerTimeout is returned when a handler outlives its timeout.
var ErrHandlerTimeout = errors.New("handler timeout")

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry represents a failed event.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue is a bounded FIFO of events that failed processing.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends an entry, evicting the oldest at capacity.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of all entries.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]DeadLetterEntry, len(q.entries))
	copy(result, q.entries)
	return result
}

func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Pop removes and returns the oldest entry.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return DeadLetterEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}
