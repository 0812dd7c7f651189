package adapter

import (
	"sync"
	"time"

	"context"

	"github.com/authplatform/resilience"
)

// StreamSource models a push-based stream's wire contract: items on
// Values, followed by exactly one send on Done (nil for successful
// completion, non-nil for failure) once the stream reaches a terminal
// state. A producer must close Values before or at the same time as
// sending on Done.
type StreamSource[T any] struct {
	Values <-chan T
	Done   <-chan error
}

// DecorateStream wraps produce so gate.AcquirePermission is called
// exactly once, on subscription, before produce ever runs — mirroring
// resilience4j's BulkheadOperator, which gates the whole Observable
// subscription rather than each emitted item. On denial the returned
// stream reports the rejection error on Done without ever invoking
// produce. Once admitted, items are forwarded untouched as they arrive;
// on the upstream's terminal signal (Done fires) exactly one of
// OnSuccess/OnError is reported to gate, or OnCancel if ctx is done
// first — whichever happens first is the only one reported, matching
// the "onComplete exactly once" idempotence resilience4j's operator
// tests assert.
func DecorateStream[T any](gate resilience.Gate, produce func(ctx context.Context) StreamSource[T]) func(ctx context.Context) StreamSource[T] {
	return func(ctx context.Context) StreamSource[T] {
		valuesOut := make(chan T)
		doneOut := make(chan error, 1)

		permit, err := gate.AcquirePermission(ctx)
		if err != nil {
			close(valuesOut)
			doneOut <- err
			return StreamSource[T]{Values: valuesOut, Done: doneOut}
		}

		upstream := produce(ctx)
		start := time.Now()
		var reportOnce sync.Once

		go func() {
			defer close(valuesOut)
			values := upstream.Values
			for {
				select {
				case <-ctx.Done():
					reportOnce.Do(func() { gate.OnCancel(permit) })
					doneOut <- ctx.Err()
					return
				case value, ok := <-values:
					if !ok {
						values = nil
						continue
					}
					select {
					case valuesOut <- value:
					case <-ctx.Done():
						reportOnce.Do(func() { gate.OnCancel(permit) })
						doneOut <- ctx.Err()
						return
					}
				case terminal := <-upstream.Done:
					duration := time.Since(start)
					if terminal != nil {
						reportOnce.Do(func() { gate.OnError(permit, duration, terminal) })
					} else {
						reportOnce.Do(func() { gate.OnSuccess(permit, duration) })
					}
					doneOut <- terminal
					return
				}
			}
		}()

		return StreamSource[T]{Values: valuesOut, Done: doneOut}
	}
}
