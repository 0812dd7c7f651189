package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: at most LimitForPeriod permits are granted within a single
// cycle, no matter how many goroutines race to acquire concurrently.
func TestAtMostLimitGrantsPerCycle(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("concurrent acquirers never exceed the per-cycle limit", prop.ForAll(
		func(limit uint8, attempts uint8) bool {
			l := New("prop",
				WithLimitForPeriod(int32(limit)+1),
				WithLimitRefreshPeriod(time.Hour),
				WithTimeoutDuration(time.Millisecond))
			ctx := context.Background()

			var granted int32
			var wg sync.WaitGroup
			n := int(attempts)%40 + 1
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := l.AcquirePermission(ctx); err == nil {
						atomic.AddInt32(&granted, 1)
					}
				}()
			}
			wg.Wait()

			return granted <= int32(limit)+1
		},
		gen.UInt8Range(0, 20),
		gen.UInt8Range(1, 40),
	))

	properties.TestingRun(t)
}
