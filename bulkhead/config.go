package bulkhead

import (
	"time"

	"github.com/authplatform/resilience"
)

// Config configures a Bulkhead.
type Config struct {
	// MaxConcurrentCalls bounds how many calls may be in flight at once.
	MaxConcurrentCalls int32
	// MaxWaitDuration bounds how long AcquirePermission parks waiting for
	// a permit to free up, absent a tighter context deadline.
	MaxWaitDuration time.Duration
	// CorrelationFn overrides how correlation IDs are generated for
	// emitted events. Nil falls back to resilience.GenerateEventID.
	CorrelationFn resilience.CorrelationFunc
}

// DefaultConfig returns resilience4j-style defaults: 25 concurrent
// calls, no wait.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentCalls: 25,
		MaxWaitDuration:    0,
	}
}

// Option mutates a Config being built by New.
type Option func(*Config)

func WithMaxConcurrentCalls(n int32) Option {
	return func(c *Config) { c.MaxConcurrentCalls = n }
}

func WithMaxWaitDuration(d time.Duration) Option {
	return func(c *Config) { c.MaxWaitDuration = d }
}

// WithCorrelationFn overrides correlation ID generation for emitted events.
func WithCorrelationFn(fn resilience.CorrelationFunc) Option {
	return func(c *Config) { c.CorrelationFn = fn }
}
