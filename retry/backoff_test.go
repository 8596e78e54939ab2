package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxRetries int) *Policy {
	return &Policy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryer_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	r := New(fastPolicy(3), nil)
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryer_ExhaustsAndReturnsLastError(t *testing.T) {
	t.Parallel()

	r := New(fastPolicy(2), nil)
	calls := 0
	last := errors.New("still broken")
	err := r.Do(context.Background(), func() error {
		calls++
		return last
	})
	require.ErrorIs(t, err, last)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestRetryer_RetryIfStopsNonRetryable(t *testing.T) {
	t.Parallel()

	fatal := errors.New("fatal")
	p := fastPolicy(5)
	p.RetryIf = func(err error) bool { return !errors.Is(err, fatal) }

	r := New(p, nil)
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryer_ContextCancellation(t *testing.T) {
	t.Parallel()

	p := &Policy{MaxRetries: 10, InitialDelay: time.Minute, Multiplier: 2.0}
	r := New(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func() error { return errors.New("transient") })
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryer_OnRetryCallbackAndDelayGrowth(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	r := New(p, nil)
	_ = r.Do(context.Background(), func() error { return errors.New("x") })

	require.Len(t, delays, 3)
	assert.LessOrEqual(t, delays[0], delays[1])
	assert.LessOrEqual(t, delays[1], delays[2])
}

func TestDoTyped(t *testing.T) {
	t.Parallel()

	r := New(fastPolicy(1), nil)
	calls := 0
	v, err := DoTyped(r, context.Background(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("once")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
