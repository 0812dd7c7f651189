package retry

import (
	"math"
	"time"

	"github.com/authplatform/resilience/jitter"
)

// IntervalFunction computes the delay that follows the given 1-based
// attempt number. attempt is the attempt that just failed; the returned
// duration is waited before the next one.
type IntervalFunction func(attempt int) time.Duration

// ConstantInterval waits the same duration between every attempt.
func ConstantInterval(d time.Duration) IntervalFunction {
	return func(attempt int) time.Duration { return d }
}

// ExponentialInterval waits base * multiplier^(attempt-1), capped at max.
func ExponentialInterval(base time.Duration, multiplier float64, max time.Duration) IntervalFunction {
	return func(attempt int) time.Duration {
		d := float64(base) * math.Pow(multiplier, float64(attempt-1))
		if d > float64(max) {
			d = float64(max)
		}
		return time.Duration(d)
	}
}

// RandomizedInterval wraps inner and perturbs its result by up to
// +/- jitterFactor (a fraction of the computed delay), using source for
// randomness.
func RandomizedInterval(inner IntervalFunction, jitterFactor float64, source jitter.Source) IntervalFunction {
	if source == nil {
		source = jitter.NewCryptoSeeded()
	}
	return func(attempt int) time.Duration {
		base := float64(inner(attempt))
		delta := base * jitterFactor * (source.Float64()*2 - 1)
		result := base + delta
		if result < 0 {
			result = 0
		}
		return time.Duration(result)
	}
}
