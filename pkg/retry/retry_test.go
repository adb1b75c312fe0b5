package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast(n int) []Option {
	return []Option{
		WithMaxAttempts(n),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2 * time.Millisecond),
		WithJitter(0),
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	}, fast(5)...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errFlaky)
	}, fast(4)...)

	assert.ErrorIs(t, err, errFlaky)
	assert.False(t, IsRetryable(err), "retryable wrapper is stripped on exhaustion")
	assert.Equal(t, 4, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errFlaky)
	}, fast(5)...)

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_PlainErrorsAreNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errFlaky
	}, fast(5)...)

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIfAndOnRetry(t *testing.T) {
	var attempts []int
	opts := append(fast(3),
		WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		}),
	)

	err := Do(context.Background(), func(ctx context.Context) error {
		return errFlaky
	}, opts...)

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, 20, LockRetrier().Config().MaxAttempts)
	assert.Equal(t, 3, WebhookRetrier().Config().MaxAttempts)
	assert.Equal(t, 5, DatabaseRetrier().Config().MaxAttempts)
}
