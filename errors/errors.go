// Package errors provides the typed error kinds the core policy engines
// return to callers.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies a resilience error kind.
type Code string

const (
	CodeCallNotPermitted    Code = "CALL_NOT_PERMITTED"
	CodeRequestNotPermitted Code = "REQUEST_NOT_PERMITTED"
	CodeBulkheadFull        Code = "BULKHEAD_FULL"
	CodeMaxRetriesExceeded  Code = "MAX_RETRIES_EXCEEDED"
)

// ResilienceError is the base type every rejection error embeds.
type ResilienceError struct {
	Code       Code
	PolicyName string
	Message    string
	Cause      error
}

func (e *ResilienceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (cause: %v)", e.Code, e.PolicyName, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.PolicyName, e.Message)
}

func (e *ResilienceError) Unwrap() error { return e.Cause }

// Is matches on Code alone, so errors.Is(err, &ResilienceError{Code: CodeBulkheadFull}) works.
func (e *ResilienceError) Is(target error) bool {
	var t *ResilienceError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// CallNotPermittedError is returned by a circuit breaker that is OPEN,
// FORCED_OPEN, or whose HALF_OPEN trial budget is exhausted.
type CallNotPermittedError struct {
	ResilienceError
	State string
}

// NewCallNotPermitted builds a CallNotPermittedError for the given breaker
// state (OPEN, FORCED_OPEN, or HALF_OPEN).
func NewCallNotPermitted(policyName, state string) *CallNotPermittedError {
	return &CallNotPermittedError{
		ResilienceError: ResilienceError{
			Code:       CodeCallNotPermitted,
			PolicyName: policyName,
			Message:    fmt.Sprintf("circuit breaker %q is %s", policyName, state),
		},
		State: state,
	}
}

// RequestNotPermittedError is returned by a rate limiter that denied
// acquisition within its wait timeout.
type RequestNotPermittedError struct {
	ResilienceError
	RetryAfter time.Duration
}

// NewRequestNotPermitted builds a RequestNotPermittedError.
func NewRequestNotPermitted(policyName string, retryAfter time.Duration) *RequestNotPermittedError {
	return &RequestNotPermittedError{
		ResilienceError: ResilienceError{
			Code:       CodeRequestNotPermitted,
			PolicyName: policyName,
			Message:    fmt.Sprintf("rate limiter %q denied permit, retry after %s", policyName, retryAfter),
		},
		RetryAfter: retryAfter,
	}
}

// BulkheadFullError is returned by a bulkhead that denied acquisition
// within its max wait duration.
type BulkheadFullError struct {
	ResilienceError
	MaxConcurrentCalls int
}

// NewBulkheadFull builds a BulkheadFullError.
func NewBulkheadFull(policyName string, maxConcurrentCalls int) *BulkheadFullError {
	return &BulkheadFullError{
		ResilienceError: ResilienceError{
			Code:       CodeBulkheadFull,
			PolicyName: policyName,
			Message:    fmt.Sprintf("bulkhead %q is full (max %d concurrent calls)", policyName, maxConcurrentCalls),
		},
		MaxConcurrentCalls: maxConcurrentCalls,
	}
}

// MaxRetriesExceededError is returned once a retry's attempt budget is
// exhausted. It carries the last underlying error.
type MaxRetriesExceededError struct {
	ResilienceError
	Attempts int
}

// NewMaxRetriesExceeded builds a MaxRetriesExceededError wrapping cause.
func NewMaxRetriesExceeded(policyName string, attempts int, cause error) *MaxRetriesExceededError {
	return &MaxRetriesExceededError{
		ResilienceError: ResilienceError{
			Code:       CodeMaxRetriesExceeded,
			PolicyName: policyName,
			Message:    fmt.Sprintf("%d retry attempts exhausted", attempts),
			Cause:      cause,
		},
		Attempts: attempts,
	}
}

// IsCallNotPermitted reports whether err is (or wraps) a CallNotPermittedError.
func IsCallNotPermitted(err error) bool {
	var e *CallNotPermittedError
	return errors.As(err, &e)
}

// IsRequestNotPermitted reports whether err is (or wraps) a RequestNotPermittedError.
func IsRequestNotPermitted(err error) bool {
	var e *RequestNotPermittedError
	return errors.As(err, &e)
}

// IsBulkheadFull reports whether err is (or wraps) a BulkheadFullError.
func IsBulkheadFull(err error) bool {
	var e *BulkheadFullError
	return errors.As(err, &e)
}

// IsMaxRetriesExceeded reports whether err is (or wraps) a MaxRetriesExceededError.
func IsMaxRetriesExceeded(err error) bool {
	var e *MaxRetriesExceededError
	return errors.As(err, &e)
}
