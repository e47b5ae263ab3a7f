package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowinskl/go-syscmd/failure"
)

func TestOnError_SucceedsAfterRetryableFailures(t *testing.T) {
	calls, resets := 0, 0
	out, err := OnError(context.Background(), Exception{
		Kind:        failure.Execution,
		Attempts:    3,
		Delay:       time.Millisecond,
		Label:       "flaky",
		BeforeRetry: func() { resets++ },
	}, func() (string, error) {
		calls++
		if calls < 3 {
			return "", failure.Mark(errors.New("exit 1"), failure.Execution)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, resets)
}

func TestOnError_NonRetryablePropagatesImmediately(t *testing.T) {
	boom := failure.Mark(errors.New("no such file"), failure.Launch)
	calls, resets := 0, 0

	_, err := OnError(context.Background(), Exception{
		Kind:        failure.Execution,
		Attempts:    5,
		BeforeRetry: func() { resets++ },
	}, func() (int, error) {
		calls++
		return 0, boom
	})

	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, resets)
}

func TestOnError_UnkindedErrorIsNotRetried(t *testing.T) {
	calls := 0
	plain := errors.New("plain")
	_, err := OnError(context.Background(), Exception{Kind: failure.Transient, Attempts: 3},
		func() (int, error) {
			calls++
			return 0, plain
		})

	assert.Same(t, plain, err)
	assert.Equal(t, 1, calls)
}

func TestOnError_ExhaustionReturnsLastFailure(t *testing.T) {
	var errs []error
	resets := 0
	_, err := OnError(context.Background(), Exception{
		Kind:        failure.Command,
		Attempts:    3,
		BeforeRetry: func() { resets++ },
	}, func() (int, error) {
		e := failure.Mark(errors.New("attempt failed"), failure.Execution)
		errs = append(errs, e)
		return 0, e
	})

	require.Len(t, errs, 3)
	assert.Same(t, errs[2], err)
	assert.Equal(t, 3, resets)
}

func TestOnError_SingleAttempt(t *testing.T) {
	calls := 0
	e := failure.Mark(errors.New("once"), failure.Transient)
	_, err := OnError(context.Background(), Exception{Kind: failure.Transient, Attempts: 1},
		func() (int, error) {
			calls++
			return 0, e
		})

	assert.Same(t, e, err)
	assert.Equal(t, 1, calls)
}

func TestOnError_InvalidConfig(t *testing.T) {
	op := func() (int, error) { return 1, nil }

	_, err := OnError(context.Background(), Exception{Attempts: 0}, op)
	assert.ErrorIs(t, err, ErrInvalidAttempts)

	_, err = OnError(context.Background(), Exception{Attempts: 1, Delay: -time.Second}, op)
	assert.ErrorIs(t, err, ErrNegativeDelay)
}

func TestOnError_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := OnError(ctx, Exception{
		Kind:        failure.Transient,
		Attempts:    5,
		Delay:       time.Hour,
		BeforeRetry: cancel,
	}, func() (int, error) {
		calls++
		return 0, failure.Mark(errors.New("busy"), failure.Transient)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
