package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func alwaysTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func TestExecute_SucceedsWithoutRetry(t *testing.T) {
	p := New(3, time.Millisecond, 10*time.Millisecond, 2.0)
	p.sleep = func(context.Context, time.Duration) error { return nil }

	calls := 0
	result, err := Execute(context.Background(), p, alwaysTransient, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestExecute_RetriesTransientUpToMaxAttempts(t *testing.T) {
	p := New(3, time.Millisecond, 10*time.Millisecond, 2.0)
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	calls := 0
	_, err := Execute(context.Background(), p, alwaysTransient, func(ctx context.Context) (string, error) {
		calls++
		return "", errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls, "thunk must be invoked at most maxAttempts times")
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, slept,
		"delays must strictly increase and be bounded by maxDelay")
}

func TestExecute_PermanentFailureStopsImmediately(t *testing.T) {
	p := New(5, time.Millisecond, 10*time.Millisecond, 2.0)
	p.sleep = func(context.Context, time.Duration) error {
		t.Fatal("must not sleep on a permanent failure")
		return nil
	}

	calls := 0
	_, err := Execute(context.Background(), p, alwaysTransient, func(ctx context.Context) (string, error) {
		calls++
		return "", errPermanent
	})

	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestExecute_DelayCapsAtMaxDelay(t *testing.T) {
	p := New(6, 10*time.Millisecond, 25*time.Millisecond, 3.0)
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, _ = Execute(context.Background(), p, alwaysTransient, func(ctx context.Context) (string, error) {
		return "", errTransient
	})

	require.Len(t, slept, 5)
	assert.Equal(t, 10*time.Millisecond, slept[0])
	assert.Equal(t, 25*time.Millisecond, slept[1]) // 30ms would exceed max, capped
	for _, d := range slept[1:] {
		assert.LessOrEqual(t, d, 25*time.Millisecond)
	}
}

func TestExecute_ObservesCancellationBeforeAttempt(t *testing.T) {
	p := New(3, time.Millisecond, 10*time.Millisecond, 2.0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Execute(ctx, p, alwaysTransient, func(ctx context.Context) (string, error) {
		calls++
		return "", nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestExecute_ObservesCancellationDuringSleep(t *testing.T) {
	p := New(3, time.Millisecond, 10*time.Millisecond, 2.0)
	ctx, cancel := context.WithCancel(context.Background())
	p.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	_, err := Execute(ctx, p, alwaysTransient, func(ctx context.Context) (string, error) {
		calls++
		return "", errTransient
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNew_CoercesInvalidParameters(t *testing.T) {
	p := New(0, 0, 0, 1.0)
	assert.Equal(t, 1, p.maxAttempts)
	assert.Equal(t, time.Millisecond, p.initialDelay)
	assert.Equal(t, time.Millisecond, p.maxDelay)
	assert.Equal(t, 2.0, p.multiplier)
}
