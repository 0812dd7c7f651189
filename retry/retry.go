// Package retry implements bounded re-execution with pluggable backoff.
// Retry is not a resilience.Gate: it is a re-execution loop that
// composes above any Gate (or above no Gate at all), classifying
// outcomes via separate error- and result-based predicates and waiting
// between attempts according to an IntervalFunction.
package retry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/authplatform/resilience"
	"github.com/authplatform/resilience/errors"
	"github.com/authplatform/resilience/eventbus"
)

// Config configures a Retry.
type Config struct {
	MaxAttempts      int
	Interval         IntervalFunction
	RetryOnError     func(err error) bool
	RetryOnResult    resilience.ResultClassifier
	CorrelationFn    resilience.CorrelationFunc
}

// DefaultConfig returns 3 attempts, 500ms constant backoff, retrying
// every error and never retrying based on result alone.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		Interval:      ConstantInterval(500 * time.Millisecond),
		RetryOnError:  func(error) bool { return true },
		RetryOnResult: func(any) bool { return false },
	}
}

// Option mutates a Config being built by New.
type Option func(*Config)

func WithMaxAttempts(n int) Option { return func(c *Config) { c.MaxAttempts = n } }

func WithInterval(fn IntervalFunction) Option { return func(c *Config) { c.Interval = fn } }

func WithRetryOnError(fn func(error) bool) Option { return func(c *Config) { c.RetryOnError = fn } }

func WithRetryOnResult(fn resilience.ResultClassifier) Option {
	return func(c *Config) { c.RetryOnResult = fn }
}

func WithCorrelationFunc(fn resilience.CorrelationFunc) Option {
	return func(c *Config) { c.CorrelationFn = fn }
}

// EventKind identifies a retry attempt event.
type EventKind int

const (
	EventAttemptFailed EventKind = iota
	EventAttemptSucceeded
	EventRetriesExhausted
	EventIgnored
)

// Event is one entry on a Retry's event bus.
type Event struct {
	Kind          EventKind
	PolicyName    string
	CorrelationID string
	Timestamp     time.Time
	Attempt       int
	Err           error
}

// Retry is a single named bounded re-execution policy.
type Retry struct {
	name          string
	config        Config
	correlationFn resilience.CorrelationFunc
	bus           *eventbus.Bus[Event]

	attemptsFailed    atomic.Int64
	attemptsSucceeded atomic.Int64
	retriesExhausted  atomic.Int64
}

// New creates a Retry.
func New(name string, opts ...Option) *Retry {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Retry{
		name:          name,
		config:        cfg,
		correlationFn: resilience.EnsureCorrelationFunc(cfg.CorrelationFn),
		bus:           eventbus.New[Event](eventbus.DefaultCapacity),
	}
}

// Name returns the retry policy's stable identity.
func (r *Retry) Name() string { return r.name }

// Events returns the retry policy's event bus.
func (r *Retry) Events() *eventbus.Bus[Event] { return r.bus }

// Counts returns cumulative attempt outcomes since creation, for
// exporting as monotonic counters.
func (r *Retry) Counts() (succeeded, failed, exhausted int64) {
	return r.attemptsSucceeded.Load(), r.attemptsFailed.Load(), r.retriesExhausted.Load()
}

// Do runs op, re-executing up to MaxAttempts times while RetryOnError or
// RetryOnResult classify the outcome as retryable, waiting Interval
// between attempts. Context cancellation during a wait aborts the loop
// immediately with ctx.Err(). Once attempts are exhausted, it returns a
// *errors.MaxRetriesExceededError wrapping the last error (or a
// synthetic one if the last attempt only failed the result predicate).
func Do[T any](ctx context.Context, r *Retry, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		retryable := false
		if err != nil {
			lastErr = err
			retryable = r.config.RetryOnError(err)
		} else if r.config.RetryOnResult(result) {
			lastErr = fmt.Errorf("retry %q: attempt %d result rejected by RetryOnResult", r.name, attempt)
			retryable = true
		} else {
			r.emit(EventAttemptSucceeded, attempt, nil)
			return result, nil
		}

		if !retryable {
			if err != nil {
				r.emit(EventIgnored, attempt, err)
				return zero, err
			}
			return result, nil
		}

		if attempt >= r.config.MaxAttempts {
			break
		}
		r.emit(EventAttemptFailed, attempt, err)

		delay := r.config.Interval(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	r.emit(EventRetriesExhausted, r.config.MaxAttempts, lastErr)
	return zero, errors.NewMaxRetriesExceeded(r.name, r.config.MaxAttempts, lastErr)
}

// Future is a handle to an asynchronously running retry loop.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Wait blocks until the retry loop completes or ctx is done, whichever
// is first.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// DoAsync schedules op on a new goroutine and returns immediately,
// never blocking the calling goroutine on a retry wait. Cancelling ctx
// propagates into the in-flight loop's wait-between-attempts select and
// unblocks Future.Wait with ctx.Err().
func DoAsync[T any](ctx context.Context, r *Retry, op func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result, f.err = Do(ctx, r, op)
	}()
	return f
}

func (r *Retry) emit(kind EventKind, attempt int, err error) {
	switch kind {
	case EventAttemptSucceeded:
		r.attemptsSucceeded.Add(1)
	case EventAttemptFailed:
		r.attemptsFailed.Add(1)
	case EventRetriesExhausted:
		r.retriesExhausted.Add(1)
	}
	r.bus.Publish(Event{
		Kind:          kind,
		PolicyName:    r.name,
		CorrelationID: r.correlationFn(),
		Timestamp:     resilience.NowUTC(),
		Attempt:       attempt,
		Err:           err,
	})
}
