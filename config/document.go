// Package config loads per-policy-kind configuration blocks from YAML,
// validates their bounds, and can watch the backing file for live
// reload.
package config

import "time"

// Duration unmarshals a YAML duration string ("5s", "200ms") into a
// time.Duration, since gopkg.in/yaml.v3 has no built-in support for it.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// AsDuration returns d as a time.Duration.
func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

// Document is the top-level shape of a resilience YAML config file.
type Document struct {
	CircuitBreakers map[string]CircuitBreakerBlock `yaml:"circuit_breakers"`
	RateLimiters    map[string]RateLimiterBlock    `yaml:"rate_limiters"`
	Bulkheads       map[string]BulkheadBlock       `yaml:"bulkheads"`
	Retries         map[string]RetryBlock          `yaml:"retries"`
}

// CircuitBreakerBlock is the declarative subset of
// circuitbreaker.Config expressible in YAML. Programmatic fields
// (RecordFailurePredicate, RecordResultPredicate, CorrelationFn) are not
// representable here and must be supplied at New(...) call sites in Go
// code.
type CircuitBreakerBlock struct {
	FailureRateThreshold                  float64  `yaml:"failure_rate_threshold"`
	SlowCallRateThreshold                 float64  `yaml:"slow_call_rate_threshold"`
	SlowCallDurationThreshold             Duration `yaml:"slow_call_duration_threshold"`
	PermittedCallsInHalfOpenState         int      `yaml:"permitted_calls_in_half_open_state"`
	MinimumNumberOfCalls                  int      `yaml:"minimum_number_of_calls"`
	SlidingWindowType                     string   `yaml:"sliding_window_type"`
	SlidingWindowSize                     int      `yaml:"sliding_window_size"`
	WaitDurationInOpenState               Duration `yaml:"wait_duration_in_open_state"`
	MaxWaitDurationInHalfOpenState        Duration `yaml:"max_wait_duration_in_half_open_state"`
	AutomaticTransitionFromOpenToHalfOpen bool     `yaml:"automatic_transition_from_open_to_half_open"`
}

// RateLimiterBlock is the declarative subset of ratelimit.Config.
type RateLimiterBlock struct {
	LimitForPeriod     int32    `yaml:"limit_for_period"`
	LimitRefreshPeriod Duration `yaml:"limit_refresh_period"`
	TimeoutDuration    Duration `yaml:"timeout_duration"`
}

// BulkheadBlock is the declarative subset of bulkhead.Config.
type BulkheadBlock struct {
	MaxConcurrentCalls int32    `yaml:"max_concurrent_calls"`
	MaxWaitDuration    Duration `yaml:"max_wait_duration"`
}

// RetryBlock is the declarative subset of retry.Config. Interval is a
// shape name ("constant", "exponential") rather than a function value;
// RandomizedInterval composition is not representable here and must be
// applied in Go code.
type RetryBlock struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	IntervalKind      string   `yaml:"interval_kind"`
	BaseInterval      Duration `yaml:"base_interval"`
	MaxInterval       Duration `yaml:"max_interval"`
	ExponentialFactor float64  `yaml:"exponential_factor"`
}
