package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuioss/cui-jwt-sub016/pkg/retry"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	strategy := retry.Strategy{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2, MaxAttempts: 5}
	e := retry.New(strategy, func(err error) bool { return errors.Is(err, errTransient) }, nil)

	result, err := retry.Execute(context.Background(), e, "fetch-jwks", func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestExecuteStopsOnPermanentError(t *testing.T) {
	attempts := 0
	strategy := retry.Strategy{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2, MaxAttempts: 5}
	e := retry.New(strategy, func(err error) bool { return errors.Is(err, errTransient) }, nil)

	_, err := retry.Execute(context.Background(), e, "op", func(ctx context.Context) (string, error) {
		attempts++
		return "", errPermanent
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, attempts, "non-retryable error must not be retried")
}

func TestExecuteExhaustsMaxAttempts(t *testing.T) {
	attempts := 0
	strategy := retry.Strategy{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2, MaxAttempts: 3}
	e := retry.New(strategy, func(err error) bool { return true }, nil)

	_, err := retry.Execute(context.Background(), e, "op", func(ctx context.Context) (string, error) {
		attempts++
		return "", errTransient
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestNoneStrategyExecutesOnce(t *testing.T) {
	attempts := 0
	e := retry.New(retry.None(), func(err error) bool { return true }, nil)

	_, err := retry.Execute(context.Background(), e, "op", func(ctx context.Context) (string, error) {
		attempts++
		return "", errTransient
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestExecuteHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	strategy := retry.Strategy{InitialDelay: 20 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2, MaxAttempts: 100}
	e := retry.New(strategy, func(err error) bool { return true }, nil)

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := retry.Execute(ctx, e, "op", func(ctx context.Context) (string, error) {
		attempts++
		return "", errTransient
	})

	require.Error(t, err)
	assert.Less(t, attempts, 100)
}

type recordingSink struct {
	starts, attempts, completes int
}

func (r *recordingSink) OnStart(retry.Context)                               { r.starts++ }
func (r *recordingSink) OnAttempt(retry.Context, time.Duration, error)        { r.attempts++ }
func (r *recordingSink) OnComplete(retry.Context, time.Duration, int, error)  { r.completes++ }

func TestMetricsSinkObservesLifecycle(t *testing.T) {
	sink := &recordingSink{}
	strategy := retry.Strategy{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2, MaxAttempts: 3}
	e := retry.New(strategy, func(err error) bool { return true }, sink)

	_, _ = retry.Execute(context.Background(), e, "op", func(ctx context.Context) (string, error) {
		return "", errTransient
	})

	assert.Equal(t, 1, sink.starts)
	assert.Equal(t, 3, sink.attempts)
	assert.Equal(t, 1, sink.completes)
}
