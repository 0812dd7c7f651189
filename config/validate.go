package config

import "fmt"

// ValidationError reports a single out-of-bounds field in a named
// policy block.
type ValidationError struct {
	PolicyName string
	Field      string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.PolicyName, e.Field, e.Message)
}

// Validate checks every block in doc for out-of-range fields, in the
// same field-by-field style as the corpus's policy validators,
// returning every violation found rather than stopping at the first.
func Validate(doc Document) []error {
	var errs []error
	for name, b := range doc.CircuitBreakers {
		errs = append(errs, validateCircuitBreaker(name, b)...)
	}
	for name, b := range doc.RateLimiters {
		errs = append(errs, validateRateLimiter(name, b)...)
	}
	for name, b := range doc.Bulkheads {
		errs = append(errs, validateBulkhead(name, b)...)
	}
	for name, b := range doc.Retries {
		errs = append(errs, validateRetry(name, b)...)
	}
	return errs
}

func validateCircuitBreaker(name string, b CircuitBreakerBlock) []error {
	var errs []error
	if b.FailureRateThreshold <= 0 || b.FailureRateThreshold > 100 {
		errs = append(errs, &ValidationError{name, "failure_rate_threshold", "must be in (0, 100]"})
	}
	if b.SlowCallRateThreshold <= 0 || b.SlowCallRateThreshold > 100 {
		errs = append(errs, &ValidationError{name, "slow_call_rate_threshold", "must be in (0, 100]"})
	}
	if b.MinimumNumberOfCalls <= 0 {
		errs = append(errs, &ValidationError{name, "minimum_number_of_calls", "must be > 0"})
	}
	if b.SlidingWindowSize <= 0 {
		errs = append(errs, &ValidationError{name, "sliding_window_size", "must be > 0"})
	}
	if b.SlidingWindowType != "count" && b.SlidingWindowType != "time" {
		errs = append(errs, &ValidationError{name, "sliding_window_type", `must be "count" or "time"`})
	}
	if b.PermittedCallsInHalfOpenState <= 0 {
		errs = append(errs, &ValidationError{name, "permitted_calls_in_half_open_state", "must be > 0"})
	}
	if b.WaitDurationInOpenState.AsDuration() <= 0 {
		errs = append(errs, &ValidationError{name, "wait_duration_in_open_state", "must be > 0"})
	}
	return errs
}

func validateRateLimiter(name string, b RateLimiterBlock) []error {
	var errs []error
	if b.LimitForPeriod <= 0 {
		errs = append(errs, &ValidationError{name, "limit_for_period", "must be > 0"})
	}
	if b.LimitRefreshPeriod.AsDuration() <= 0 {
		errs = append(errs, &ValidationError{name, "limit_refresh_period", "must be > 0"})
	}
	if b.TimeoutDuration.AsDuration() < 0 {
		errs = append(errs, &ValidationError{name, "timeout_duration", "must be >= 0"})
	}
	return errs
}

func validateBulkhead(name string, b BulkheadBlock) []error {
	var errs []error
	if b.MaxConcurrentCalls <= 0 {
		errs = append(errs, &ValidationError{name, "max_concurrent_calls", "must be > 0"})
	}
	if b.MaxWaitDuration.AsDuration() < 0 {
		errs = append(errs, &ValidationError{name, "max_wait_duration", "must be >= 0"})
	}
	return errs
}

func validateRetry(name string, b RetryBlock) []error {
	var errs []error
	if b.MaxAttempts <= 0 {
		errs = append(errs, &ValidationError{name, "max_attempts", "must be > 0"})
	}
	if b.BaseInterval.AsDuration() <= 0 {
		errs = append(errs, &ValidationError{name, "base_interval", "must be > 0"})
	}
	if b.IntervalKind != "constant" && b.IntervalKind != "exponential" {
		errs = append(errs, &ValidationError{name, "interval_kind", `must be "constant" or "exponential"`})
	}
	if b.IntervalKind == "exponential" && b.ExponentialFactor <= 1 {
		errs = append(errs, &ValidationError{name, "exponential_factor", "must be > 1 for exponential backoff"})
	}
	return errs
}
