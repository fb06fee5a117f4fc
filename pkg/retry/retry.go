// Package retry implements exponential-backoff-with-jitter execution
// around a fallible, re-invokable operation.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Classifier decides whether a failed attempt should be retried. Callers
// inject this so retry stays decoupled from any specific error taxonomy
// (pkg/httpres.Category drives it for the HTTP handler).
type Classifier func(err error) (retryable bool)

// Context identifies a single retry run: an operation name plus the
// 1-based attempt number. Immutable; NextAttempt returns a new value.
type Context struct {
	OperationName string
	Attempt       int
	RunID         uuid.UUID
}

// NextAttempt returns a Context for the following attempt.
func (c Context) NextAttempt() Context {
	return Context{OperationName: c.OperationName, Attempt: c.Attempt + 1, RunID: c.RunID}
}

// MetricsSink observes the lifecycle of a retry run. All methods must
// tolerate being called from the goroutine executing the operation.
type MetricsSink interface {
	OnStart(ctx Context)
	OnAttempt(ctx Context, d time.Duration, err error)
	OnComplete(ctx Context, total time.Duration, attempts int, err error)
}

// NopMetricsSink discards all events.
type NopMetricsSink struct{}

func (NopMetricsSink) OnStart(Context)                                  {}
func (NopMetricsSink) OnAttempt(Context, time.Duration, error)          {}
func (NopMetricsSink) OnComplete(Context, time.Duration, int, error)    {}

// Strategy configures an Engine.
type Strategy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// None returns a strategy that executes the operation exactly once.
func None() Strategy {
	return Strategy{InitialDelay: 0, MaxDelay: 0, Multiplier: 1, MaxAttempts: 1}
}

// DefaultStrategy mirrors the configuration keys in spec §6
// (retry.initial-delay-ms etc.) at their documented defaults.
func DefaultStrategy() Strategy {
	return Strategy{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
	}
}

// Engine executes operations under a Strategy, retrying only outcomes
// the Classifier marks retryable.
type Engine struct {
	strategy   Strategy
	classifier Classifier
	sink       MetricsSink
}

// New builds an Engine. A nil classifier retries every non-nil error; a
// nil sink discards events.
func New(strategy Strategy, classifier Classifier, sink MetricsSink) *Engine {
	if classifier == nil {
		classifier = func(err error) bool { return err != nil }
	}
	if sink == nil {
		sink = NopMetricsSink{}
	}
	return &Engine{strategy: strategy, classifier: classifier, sink: sink}
}

// permanentError wraps a non-retryable failure so backoff.Retry stops
// immediately instead of exhausting MaxAttempts on an error we already
// know will never succeed (e.g. a 4xx CLIENT_ERROR).
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Execute invokes operation, retrying per the configured Strategy until
// it succeeds, a non-retryable error is classified, MaxAttempts is
// exhausted, or ctx is cancelled. It returns the last result/error pair.
func Execute[T any](ctx context.Context, e *Engine, operationName string, operation func(ctx context.Context) (T, error)) (T, error) {
	rc := Context{OperationName: operationName, Attempt: 1, RunID: uuid.New()}
	e.sink.OnStart(rc)

	bo := e.backoffPolicy()
	var boCtx backoff.BackOff = bo
	if e.strategy.MaxAttempts > 0 {
		boCtx = backoff.WithMaxRetries(bo, uint64(e.strategy.MaxAttempts-1))
	}
	boCtx = backoff.WithContext(boCtx, ctx)

	start := time.Now()
	var last T
	var lastErr error
	attempts := 0

	op := func() error {
		if attempts > 0 {
			rc = rc.NextAttempt()
		}
		attempts++
		attemptStart := time.Now()
		res, err := operation(ctx)
		last = res
		lastErr = err
		e.sink.OnAttempt(rc, time.Since(attemptStart), err)
		if err == nil {
			return nil
		}
		if !e.classifier(err) {
			return backoff.Permanent(&permanentError{err: err})
		}
		return err
	}

	err := backoff.Retry(op, boCtx)
	if err != nil {
		var perm *permanentError
		if errors.As(err, &perm) {
			lastErr = perm.Unwrap()
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// cancellation surfaces the most recent failure, per spec §4.2.
		}
	}

	e.sink.OnComplete(rc, time.Since(start), rc.Attempt, lastErr)
	return last, lastErr
}

func (e *Engine) backoffPolicy() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.strategy.InitialDelay
	bo.MaxInterval = e.strategy.MaxDelay
	bo.Multiplier = e.strategy.Multiplier
	bo.MaxElapsedTime = 0 // bounded by MaxAttempts instead of wall-clock
	bo.RandomizationFactor = 1.0 // full jitter, per spec §4.2
	bo.Reset()
	return bo
}
