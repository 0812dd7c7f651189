package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
circuit_breakers:
  payments:
    failure_rate_threshold: 50
    slow_call_rate_threshold: 100
    slow_call_duration_threshold: 2s
    permitted_calls_in_half_open_state: 3
    minimum_number_of_calls: 10
    sliding_window_type: count
    sliding_window_size: 20
    wait_duration_in_open_state: 5s
    max_wait_duration_in_half_open_state: 0s
    automatic_transition_from_open_to_half_open: true
rate_limiters:
  api:
    limit_for_period: 100
    limit_refresh_period: 1s
    timeout_duration: 500ms
bulkheads:
  db:
    max_concurrent_calls: 10
    max_wait_duration: 100ms
retries:
  upstream:
    max_attempts: 3
    interval_kind: exponential
    base_interval: 100ms
    max_interval: 5s
    exponential_factor: 2
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "resilience.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadParsesAndValidates(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	cb, ok := p.CircuitBreaker("payments")
	if !ok {
		t.Fatal("expected payments circuit breaker block")
	}
	if cb.SlowCallDurationThreshold.AsDuration() != 2*time.Second {
		t.Fatalf("unexpected duration parse: %v", cb.SlowCallDurationThreshold.AsDuration())
	}

	rl, ok := p.RateLimiter("api")
	if !ok || rl.LimitForPeriod != 100 {
		t.Fatalf("unexpected rate limiter block: %+v ok=%v", rl, ok)
	}
}

func TestLoadRejectsInvalidDocument(t *testing.T) {
	path := writeTempConfig(t, `
circuit_breakers:
  bad:
    failure_rate_threshold: 0
    slow_call_rate_threshold: 100
    minimum_number_of_calls: 10
    sliding_window_type: count
    sliding_window_size: 20
    permitted_calls_in_half_open_state: 3
    wait_duration_in_open_state: 5s
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for zero failure_rate_threshold")
	}
}

func TestWatchPushesUpdatedDocument(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	updates, err := p.Watch(ctx)
	if err != nil {
		t.Fatalf("unexpected watch error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	updated := sampleYAML + "\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case doc, ok := <-updates:
		if !ok {
			t.Fatal("updates channel closed before delivering a document")
		}
		if _, present := doc.CircuitBreakers["payments"]; !present {
			t.Fatal("expected reloaded document to still contain payments block")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch update")
	}
}
