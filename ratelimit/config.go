package ratelimit

import (
	"time"

	"github.com/authplatform/resilience"
)

// Config configures a Limiter.
type Config struct {
	// LimitForPeriod is the number of permits granted per LimitRefreshPeriod.
	LimitForPeriod int32
	// LimitRefreshPeriod is the cycle length after which permits refill
	// back to LimitForPeriod.
	LimitRefreshPeriod time.Duration
	// TimeoutDuration bounds how long AcquirePermission parks waiting for
	// the next cycle when the current one is exhausted, absent a tighter
	// context deadline.
	TimeoutDuration time.Duration
	// CorrelationFn overrides how correlation IDs are generated for
	// emitted events. Nil falls back to resilience.GenerateEventID.
	CorrelationFn resilience.CorrelationFunc
}

// DefaultConfig returns resilience4j-style defaults: 50 permits/sec, 5s
// max wait.
func DefaultConfig() Config {
	return Config{
		LimitForPeriod:     50,
		LimitRefreshPeriod: time.Second,
		TimeoutDuration:    5 * time.Second,
	}
}

// Option mutates a Config being built by New.
type Option func(*Config)

func WithLimitForPeriod(n int32) Option {
	return func(c *Config) { c.LimitForPeriod = n }
}

func WithLimitRefreshPeriod(d time.Duration) Option {
	return func(c *Config) { c.LimitRefreshPeriod = d }
}

func WithTimeoutDuration(d time.Duration) Option {
	return func(c *Config) { c.TimeoutDuration = d }
}

// WithCorrelationFn overrides correlation ID generation for emitted events.
func WithCorrelationFn(fn resilience.CorrelationFunc) Option {
	return func(c *Config) { c.CorrelationFn = fn }
}
