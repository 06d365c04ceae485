package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(recorded *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*recorded = append(*recorded, d)
		return nil
	}
}

func TestExecutor_SucceedsFirstAttempt(t *testing.T) {
	var sleeps []time.Duration
	e := NewExecutor(3, time.Second).WithSleep(noSleep(&sleeps))

	calls := 0
	err := e.Do(context.Background(), "test-op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps)
}

func TestExecutor_RetriesWithDoublingBackoff(t *testing.T) {
	var sleeps []time.Duration
	e := NewExecutor(3, time.Second).WithSleep(noSleep(&sleeps))

	calls := 0
	err := e.Do(context.Background(), "test-op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestExecutor_ReturnsLastErrorUnchanged(t *testing.T) {
	var sleeps []time.Duration
	e := NewExecutor(3, time.Second).WithSleep(noSleep(&sleeps))

	finalErr := errors.New("still broken")
	calls := 0
	err := e.Do(context.Background(), "test-op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("earlier failure")
		}
		return finalErr
	})

	assert.Equal(t, 3, calls)
	assert.Same(t, finalErr, err)
	assert.Len(t, sleeps, 2)
}

func TestExecutor_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	e := NewExecutor(3, time.Second).WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	calls := 0
	err := e.Do(ctx, "test-op", func(ctx context.Context) error {
		calls++
		return errors.New("fails")
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}
