package adapter

import (
	"context"
	"time"

	"github.com/authplatform/resilience"
)

// Future is a handle to an asynchronously running decorated operation.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Wait blocks until the operation completes or ctx is done, whichever
// happens first. Waiting does not cancel the underlying operation —
// only the producer's own context can do that.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// resolved returns a Future that is already complete, for the rejection
// path where AcquirePermission itself fails.
func resolved[T any](result T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), result: result, err: err}
	close(f.done)
	return f
}

// DecorateFuture wraps produce, a function that starts async work and
// returns a Future for it immediately, so that permission is acquired
// before produce is invoked and the terminal outcome is reported once
// produce's own Future resolves — without blocking the calling
// goroutine on that resolution.
func DecorateFuture[T any](gate resilience.Gate, produce func(ctx context.Context) *Future[T]) func(ctx context.Context) *Future[T] {
	return func(ctx context.Context) *Future[T] {
		permit, err := gate.AcquirePermission(ctx)
		if err != nil {
			var zero T
			return resolved(zero, err)
		}

		start := time.Now()
		inner := produce(ctx)

		out := &Future[T]{done: make(chan struct{})}
		go func() {
			defer close(out.done)
			result, ferr := inner.Wait(context.Background())
			duration := time.Since(start)

			switch {
			case ferr != nil:
				gate.OnError(permit, duration, ferr)
			case classify(gate, result):
				gate.OnError(permit, duration, ErrResultClassifiedFailure)
			default:
				gate.OnSuccess(permit, duration)
			}

			out.result = result
			out.err = ferr
		}()
		return out
	}
}
