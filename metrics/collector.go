// Package metrics exposes live policy state as Prometheus metrics. It
// polls the registries handed to it at scrape time rather than pushing
// on every state change, matching the corpus's own resilience-service
// and resilience-operator collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/authplatform/resilience/bulkhead"
	"github.com/authplatform/resilience/circuitbreaker"
	"github.com/authplatform/resilience/ratelimit"
	"github.com/authplatform/resilience/registry"
	"github.com/authplatform/resilience/retry"
)

var (
	circuitBreakerStateDesc = prometheus.NewDesc(
		"resilience_circuitbreaker_state",
		"Current circuit breaker state as an ordinal (0=CLOSED,1=OPEN,2=HALF_OPEN,3=DISABLED,4=FORCED_OPEN).",
		[]string{"name"}, nil,
	)
	windowFailureRateDesc = prometheus.NewDesc(
		"resilience_window_failure_rate",
		"Failure rate of the circuit breaker's sliding window, in percent. -1 while the window is below its minimum call count.",
		[]string{"name"}, nil,
	)
	windowSlowCallRateDesc = prometheus.NewDesc(
		"resilience_window_slow_call_rate",
		"Slow call rate of the circuit breaker's sliding window, in percent. -1 while the window is below its minimum call count.",
		[]string{"name"}, nil,
	)
	rateLimiterPermitsRemainingDesc = prometheus.NewDesc(
		"resilience_ratelimiter_permits_remaining",
		"Permits remaining in the rate limiter's current cycle.",
		[]string{"name"}, nil,
	)
	bulkheadAvailablePermitsDesc = prometheus.NewDesc(
		"resilience_bulkhead_available_permits",
		"Available concurrency permits in the bulkhead.",
		[]string{"name"}, nil,
	)
	bulkheadMaxPermitsDesc = prometheus.NewDesc(
		"resilience_bulkhead_max_permits",
		"Configured concurrency limit of the bulkhead.",
		[]string{"name"}, nil,
	)
	retryAttemptsTotalDesc = prometheus.NewDesc(
		"resilience_retry_attempts_total",
		"Cumulative retry attempts by outcome.",
		[]string{"name", "outcome"}, nil,
	)
)

// Collector is a prometheus.Collector that polls a fixed set of policy
// registries on every scrape. It holds no state of its own beyond the
// registries: values come straight from the live instances, so a
// scrape always reflects the current state rather than a cached one.
type Collector struct {
	circuitBreakers *registry.Registry[*circuitbreaker.Breaker]
	rateLimiters    *registry.Registry[*ratelimit.Limiter]
	bulkheads       *registry.Registry[*bulkhead.Bulkhead]
	retries         *registry.Registry[*retry.Retry]
}

// NewCollector builds a Collector over the given registries. Any
// registry may be nil, in which case that policy kind is skipped on
// every scrape.
func NewCollector(
	circuitBreakers *registry.Registry[*circuitbreaker.Breaker],
	rateLimiters *registry.Registry[*ratelimit.Limiter],
	bulkheads *registry.Registry[*bulkhead.Bulkhead],
	retries *registry.Registry[*retry.Retry],
) *Collector {
	return &Collector{
		circuitBreakers: circuitBreakers,
		rateLimiters:    rateLimiters,
		bulkheads:       bulkheads,
		retries:         retries,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- circuitBreakerStateDesc
	ch <- windowFailureRateDesc
	ch <- windowSlowCallRateDesc
	ch <- rateLimiterPermitsRemainingDesc
	ch <- bulkheadAvailablePermitsDesc
	ch <- bulkheadMaxPermitsDesc
	ch <- retryAttemptsTotalDesc
}

// Collect implements prometheus.Collector, polling every registered
// instance across all four registries.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.circuitBreakers != nil {
		for name, b := range c.circuitBreakers.All() {
			ch <- prometheus.MustNewConstMetric(circuitBreakerStateDesc, prometheus.GaugeValue, float64(b.State()), name)
			snap := b.Snapshot()
			failureRate, slowCallRate := snap.FailureRate, snap.SlowCallRate
			if failureRate >= 0 {
				failureRate *= 100
			}
			if slowCallRate >= 0 {
				slowCallRate *= 100
			}
			ch <- prometheus.MustNewConstMetric(windowFailureRateDesc, prometheus.GaugeValue, failureRate, name)
			ch <- prometheus.MustNewConstMetric(windowSlowCallRateDesc, prometheus.GaugeValue, slowCallRate, name)
		}
	}
	if c.rateLimiters != nil {
		for name, l := range c.rateLimiters.All() {
			ch <- prometheus.MustNewConstMetric(rateLimiterPermitsRemainingDesc, prometheus.GaugeValue, float64(l.PermitsRemaining()), name)
		}
	}
	if c.bulkheads != nil {
		for name, b := range c.bulkheads.All() {
			ch <- prometheus.MustNewConstMetric(bulkheadAvailablePermitsDesc, prometheus.GaugeValue, float64(b.AvailablePermits()), name)
			ch <- prometheus.MustNewConstMetric(bulkheadMaxPermitsDesc, prometheus.GaugeValue, float64(b.MaxConcurrentCalls()), name)
		}
	}
	if c.retries != nil {
		for name, r := range c.retries.All() {
			succeeded, failed, exhausted := r.Counts()
			ch <- prometheus.MustNewConstMetric(retryAttemptsTotalDesc, prometheus.CounterValue, float64(succeeded), name, "succeeded")
			ch <- prometheus.MustNewConstMetric(retryAttemptsTotalDesc, prometheus.CounterValue, float64(failed), name, "failed")
			ch <- prometheus.MustNewConstMetric(retryAttemptsTotalDesc, prometheus.CounterValue, float64(exhausted), name, "exhausted")
		}
	}
}
