package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	resilienceerrors "github.com/authplatform/resilience/errors"
)

// Property: once OPEN, every acquisition before the wait duration elapses
// is rejected with CallNotPermitted, regardless of how many outcomes an
// arbitrary sequence of prior calls produced.
func TestOpenAlwaysRejectsWithinWaitDuration(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("OPEN rejects every call before wait duration elapses", prop.ForAll(
		func(failures []bool) bool {
			b := New("prop-open",
				WithMinimumNumberOfCalls(1),
				WithFailureRateThreshold(1),
				WithSlidingWindow(CountBasedWindow, 8),
				WithWaitDurationInOpenState(time.Hour),
				WithPermittedCallsInHalfOpenState(1),
			)
			ctx := context.Background()

			sawFailure := false
			for _, failed := range failures {
				if b.State() != StateClosed {
					break
				}
				p, err := b.AcquirePermission(ctx)
				if err != nil {
					break
				}
				if failed {
					sawFailure = true
					b.OnError(p, time.Millisecond, context.DeadlineExceeded)
				} else {
					b.OnSuccess(p, time.Millisecond)
				}
			}

			if !sawFailure {
				return true // never tripped, nothing to assert
			}
			if b.State() != StateOpen {
				return true // threshold config may not have tripped; not a violation
			}
			_, err := b.AcquirePermission(ctx)
			return resilienceerrors.IsCallNotPermitted(err)
		},
		gen.SliceOfN(20, gen.Bool()),
	))

	properties.TestingRun(t)
}

// Property: the breaker is always in exactly one of the five defined
// states, never an out-of-range value, across arbitrary transition
// sequences driven by forced transitions and recorded outcomes.
func TestStateAlwaysValid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("state is always one of the five defined values", prop.ForAll(
		func(ops []uint8) bool {
			b := New("prop-state",
				WithMinimumNumberOfCalls(1),
				WithFailureRateThreshold(50),
				WithSlidingWindow(CountBasedWindow, 4),
				WithWaitDurationInOpenState(time.Nanosecond),
				WithPermittedCallsInHalfOpenState(1),
			)
			ctx := context.Background()

			for _, op := range ops {
				switch op % 4 {
				case 0:
					if p, err := b.AcquirePermission(ctx); err == nil {
						b.OnSuccess(p, time.Millisecond)
					}
				case 1:
					if p, err := b.AcquirePermission(ctx); err == nil {
						b.OnError(p, time.Millisecond, context.DeadlineExceeded)
					}
				case 2:
					b.TransitionToForcedOpen()
				case 3:
					b.Reset()
				}
				s := b.State()
				if s != StateClosed && s != StateOpen && s != StateHalfOpen && s != StateDisabled && s != StateForcedOpen {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8Range(0, 3)),
	))

	properties.TestingRun(t)
}
