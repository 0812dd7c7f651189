// Package resilience holds the shared identity, event, and decorator-gate
// plumbing used by the circuitbreaker, ratelimit, bulkhead, and retry
// policy engines. It has no dependency on any of them.
package resilience

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// CorrelationFunc produces a correlation identifier attached to emitted
// events. Policies that are not given one fall back to GenerateEventID.
type CorrelationFunc func() string

// EnsureCorrelationFunc returns fn, or a default generator if fn is nil.
func EnsureCorrelationFunc(fn CorrelationFunc) CorrelationFunc {
	if fn != nil {
		return fn
	}
	return GenerateEventID
}

// NowUTC returns the current time in UTC. Centralized so tests and
// deterministic-clock callers have one seam to replace.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// GenerateEventID returns a random hex identifier for events and
// correlation IDs.
func GenerateEventID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b[:])
}

// PolicyKind identifies which of the four concurrency-sensitive engines a
// config block or registry entry belongs to.
type PolicyKind string

const (
	KindCircuitBreaker PolicyKind = "circuit_breaker"
	KindRateLimiter    PolicyKind = "rate_limiter"
	KindBulkhead       PolicyKind = "bulkhead"
	KindRetry          PolicyKind = "retry"
)

// Permit is an opaque token returned by a Gate's AcquirePermission. It
// carries whatever per-call bookkeeping the issuing policy needs (a
// circuit-breaker generation + window, a bulkhead release flag, ...) so
// that a single set of decorator adapters can drive all three gates.
type Permit struct {
	v any
}

// NewPermit wraps a policy-specific payload in a Permit.
func NewPermit(v any) Permit { return Permit{v: v} }

// Value returns the policy-specific payload. Policies type-assert their
// own payload back out; this is never inspected by the adapter layer.
func (p Permit) Value() any { return p.v }

// Gate is the uniform contract shared by CircuitBreaker, RateLimiter, and
// Bulkhead: acquire permission to proceed, then report exactly one
// terminal outcome (or a cancellation release) per successful
// acquisition. Retry is not a Gate — it is a re-execution loop that
// composes above any Gate.
type Gate interface {
	// Name returns the policy instance's stable identity.
	Name() string

	// AcquirePermission requests permission to proceed. Circuit breakers
	// return immediately; rate limiters and bulkheads may block the
	// caller up to their configured timeout, and respect ctx
	// cancellation while doing so.
	AcquirePermission(ctx context.Context) (Permit, error)

	// OnSuccess reports a successful call that completed in duration.
	OnSuccess(p Permit, duration time.Duration)

	// OnError reports a failed call. Classification (recordable vs.
	// ignored) is the Gate's own responsibility.
	OnError(p Permit, duration time.Duration, err error)

	// OnCancel releases a permit without reporting an outcome. Must be
	// idempotent-safe to call at most once per successful acquisition;
	// callers are responsible for calling it at most once.
	OnCancel(p Permit)
}

// ResultClassifier lets a Gate reclassify a value returned without error
// as a recordable failure (spec: recordResultPredicate).
type ResultClassifier func(result any) bool
