// Package retry implements the exponential-backoff retry policy used to
// absorb transient store failures (component E). It never inspects
// storage-specific error types itself: callers supply a Classifier that
// decides which failures are worth retrying, keeping this package
// storage-agnostic per the design notes.
package retry

import (
	"context"
	"time"

	"webhook-forwarder/internal/infra/metrics"
)

// Classifier reports whether err is transient (timeout, connectivity,
// database-update failure) as opposed to permanent (including a
// uniqueness violation, which the repository's classifier reports as
// permanent so the policy does not retry it).
type Classifier func(err error) bool

type Policy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	sleep        func(ctx context.Context, d time.Duration) error
}

// New builds a Policy, coercing out-of-range parameters per the spec:
// multiplier <= 1 becomes 2.0, and delays below 1ms are raised to 1ms.
func New(maxAttempts int, initialDelay, maxDelay time.Duration, multiplier float64) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if multiplier <= 1 {
		multiplier = 2.0
	}
	if initialDelay < time.Millisecond {
		initialDelay = time.Millisecond
	}
	if maxDelay < time.Millisecond {
		maxDelay = time.Millisecond
	}

	return &Policy{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		multiplier:   multiplier,
		sleep:        sleepCtx,
	}
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

// Execute invokes thunk, retrying on classifier-transient failures up to
// maxAttempts with capped exponential backoff. Cancellation is observed
// before every attempt and during every sleep.
func Execute[T any](ctx context.Context, p *Policy, isTransient Classifier, thunk func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero  T
		last  error
		delay = p.initialDelay
	)

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := thunk(ctx)
		if err == nil {
			return result, nil
		}
		last = err

		if !isTransient(err) {
			return zero, err
		}
		if attempt == p.maxAttempts {
			break
		}

		metrics.RetryAttempts.WithLabelValues("retried").Inc()

		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = nextDelay(delay, p.multiplier, p.maxDelay)
	}

	metrics.RetryAttempts.WithLabelValues("exhausted").Inc()
	return zero, last
}

func nextDelay(cur time.Duration, multiplier float64, max time.Duration) time.Duration {
	next := time.Duration(float64(cur) * multiplier)
	if next > max {
		next = max
	}
	return next
}
