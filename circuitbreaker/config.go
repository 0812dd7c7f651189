package circuitbreaker

import (
	"time"

	"github.com/authplatform/resilience"
	"github.com/authplatform/resilience/window"
)

// WindowType selects the sliding outcome window implementation a breaker
// accumulates outcomes into.
type WindowType int

const (
	CountBasedWindow WindowType = iota
	TimeBasedWindow
)

// Config configures a Breaker. Zero-value fields are filled in by
// DefaultConfig; New always starts from DefaultConfig and applies
// Options over it.
type Config struct {
	FailureRateThreshold                  float64
	SlowCallRateThreshold                 float64
	SlowCallDurationThreshold             time.Duration
	PermittedCallsInHalfOpenState         int
	MinimumNumberOfCalls                  int
	SlidingWindowType                     WindowType
	SlidingWindowSize                     int
	WaitDurationInOpenState               time.Duration
	MaxWaitDurationInHalfOpenState        time.Duration
	AutomaticTransitionFromOpenToHalfOpen bool
	RecordFailurePredicate                func(err error) bool
	RecordResultPredicate                 resilience.ResultClassifier
	CorrelationFn                         resilience.CorrelationFunc
}

// DefaultConfig returns resilience4j-style defaults.
func DefaultConfig() Config {
	return Config{
		FailureRateThreshold:                  50,
		SlowCallRateThreshold:                 100,
		SlowCallDurationThreshold:             60 * time.Second,
		PermittedCallsInHalfOpenState:         10,
		MinimumNumberOfCalls:                  100,
		SlidingWindowType:                     CountBasedWindow,
		SlidingWindowSize:                     100,
		WaitDurationInOpenState:               60 * time.Second,
		MaxWaitDurationInHalfOpenState:        0,
		AutomaticTransitionFromOpenToHalfOpen: true,
		RecordFailurePredicate:                func(error) bool { return true },
	}
}

// Option mutates a Config being built by New.
type Option func(*Config)

func WithFailureRateThreshold(pct float64) Option {
	return func(c *Config) { c.FailureRateThreshold = pct }
}

func WithSlowCallRateThreshold(pct float64) Option {
	return func(c *Config) { c.SlowCallRateThreshold = pct }
}

func WithSlowCallDurationThreshold(d time.Duration) Option {
	return func(c *Config) { c.SlowCallDurationThreshold = d }
}

func WithPermittedCallsInHalfOpenState(n int) Option {
	return func(c *Config) { c.PermittedCallsInHalfOpenState = n }
}

func WithMinimumNumberOfCalls(n int) Option {
	return func(c *Config) { c.MinimumNumberOfCalls = n }
}

func WithSlidingWindow(kind WindowType, size int) Option {
	return func(c *Config) { c.SlidingWindowType = kind; c.SlidingWindowSize = size }
}

func WithWaitDurationInOpenState(d time.Duration) Option {
	return func(c *Config) { c.WaitDurationInOpenState = d }
}

func WithMaxWaitDurationInHalfOpenState(d time.Duration) Option {
	return func(c *Config) { c.MaxWaitDurationInHalfOpenState = d }
}

func WithAutomaticTransitionFromOpenToHalfOpen(enabled bool) Option {
	return func(c *Config) { c.AutomaticTransitionFromOpenToHalfOpen = enabled }
}

func WithRecordFailurePredicate(fn func(error) bool) Option {
	return func(c *Config) { c.RecordFailurePredicate = fn }
}

func WithRecordResultPredicate(fn resilience.ResultClassifier) Option {
	return func(c *Config) { c.RecordResultPredicate = fn }
}

func WithCorrelationFunc(fn resilience.CorrelationFunc) Option {
	return func(c *Config) { c.CorrelationFn = fn }
}

func (c Config) newWindow(now func() time.Time) window.Window {
	if c.SlidingWindowType == TimeBasedWindow {
		return window.NewTimeWindow(c.SlidingWindowSize, c.MinimumNumberOfCalls, now)
	}
	return window.NewCountWindow(c.SlidingWindowSize, c.MinimumNumberOfCalls)
}
