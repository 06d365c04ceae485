package retry

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/internal/tracing"
)

// Executor reruns failed operations with doubling backoff. Any error is
// retried; the final attempt's error propagates unchanged to the
// caller.
type Executor struct {
	maxAttempts int
	baseBackoff time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewExecutor(maxAttempts int, baseBackoff time.Duration) *Executor {
	return &Executor{
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		sleep:       sleepCtx,
	}
}

// WithSleep overrides the backoff sleeper, for tests.
func (e *Executor) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Executor {
	e.sleep = sleep
	return e
}

// Do runs op until it succeeds or attempts are exhausted. Backoff
// doubles after each failure: base, 2x base, 4x base. A cancelled
// context aborts between attempts.
func (e *Executor) Do(ctx context.Context, operationName string, op func(ctx context.Context) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "retry.Do")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("operation", operationName)

	backoff := e.baseBackoff
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			tracing.TraceErr(span, err)
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			span.LogKV("attempts", attempt)
			return nil
		}

		if attempt < e.maxAttempts {
			if err := e.sleep(ctx, backoff); err != nil {
				tracing.TraceErr(span, err)
				return err
			}
			backoff *= 2
		}
	}

	span.LogKV("attempts", e.maxAttempts)
	tracing.TraceErr(span, lastErr)
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
