// Package adapter implements the three uniform decorator shapes —
// synchronous, future-based async, and push-based channel stream — all
// driven by the same resilience.Gate contract, so one Gate
// implementation (circuit breaker, rate limiter, or bulkhead) can
// decorate any of the three execution models without its own code
// knowing which one it is.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/authplatform/resilience"
)

// ErrResultClassifiedFailure is passed to a Gate's OnError when the
// wrapped call returned a value without an error, but a resultClassifier
// reclassified that value as a recordable failure.
var ErrResultClassifiedFailure = errors.New("adapter: result classified as failure")

// resultClassifier is implemented by Gates that support classifying a
// successfully-returned value as a failure (circuitbreaker.Breaker).
// Gates that don't implement it are treated as always classifying
// results as non-failures.
type resultClassifier interface {
	ClassifyResult(result any) bool
}

func classify(gate resilience.Gate, result any) bool {
	rc, ok := gate.(resultClassifier)
	if !ok {
		return false
	}
	return rc.ClassifyResult(result)
}

// Decorate wraps fn so every invocation first acquires permission from
// gate, then reports exactly one terminal outcome: OnError if fn
// returned an error or gate's result classifier flagged the returned
// value as a failure, OnSuccess otherwise.
func Decorate[T any](gate resilience.Gate, fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var zero T

		permit, err := gate.AcquirePermission(ctx)
		if err != nil {
			return zero, err
		}

		start := time.Now()
		result, err := fn(ctx)
		duration := time.Since(start)

		switch {
		case err != nil:
			gate.OnError(permit, duration, err)
			return zero, err
		case classify(gate, result):
			gate.OnError(permit, duration, ErrResultClassifiedFailure)
			return result, nil
		default:
			gate.OnSuccess(permit, duration)
			return result, nil
		}
	}
}

// DecorateVoid is Decorate for operations with no return value.
func DecorateVoid(gate resilience.Gate, fn func(ctx context.Context) error) func(ctx context.Context) error {
	decorated := Decorate(gate, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return func(ctx context.Context) error {
		_, err := decorated(ctx)
		return err
	}
}
