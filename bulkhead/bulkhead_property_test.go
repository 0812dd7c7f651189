package bulkhead

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/authplatform/resilience"
)

// Property: AvailablePermits never leaves [0, MaxConcurrentCalls] under
// an arbitrary interleaving of acquire and release operations.
func TestAvailablePermitsStaysWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("permits stay within [0, max] across arbitrary ops", prop.ForAll(
		func(capacity uint8, ops []bool) bool {
			max := int32(capacity)%10 + 1
			b := New("prop", WithMaxConcurrentCalls(max))
			ctx := context.Background()

			var held []resilience.Permit
			for _, acquire := range ops {
				if acquire {
					if p, err := b.AcquirePermission(ctx); err == nil {
						held = append(held, p)
					}
				} else if len(held) > 0 {
					p := held[len(held)-1]
					held = held[:len(held)-1]
					b.OnSuccess(p, time.Millisecond)
				}
				avail := b.AvailablePermits()
				if avail < 0 || avail > max {
					return false
				}
			}
			return true
		},
		gen.UInt8Range(0, 9),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
