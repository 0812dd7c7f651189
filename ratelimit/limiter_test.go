package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	resilienceerrors "github.com/authplatform/resilience/errors"
)

func TestAcquirePermissionWithinBudget(t *testing.T) {
	l := New("test", WithLimitForPeriod(3), WithLimitRefreshPeriod(time.Hour), WithTimeoutDuration(time.Millisecond))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.AcquirePermission(ctx); err != nil {
			t.Fatalf("call %d unexpectedly rejected: %v", i, err)
		}
	}

	if _, err := l.AcquirePermission(ctx); !resilienceerrors.IsRequestNotPermitted(err) {
		t.Fatalf("expected RequestNotPermitted once budget exhausted, got %v", err)
	}
}

func TestAcquirePermissionRefillsNextCycle(t *testing.T) {
	l := New("test", WithLimitForPeriod(1), WithLimitRefreshPeriod(20*time.Millisecond), WithTimeoutDuration(100*time.Millisecond))
	ctx := context.Background()

	if _, err := l.AcquirePermission(ctx); err != nil {
		t.Fatalf("first call rejected: %v", err)
	}
	if _, err := l.AcquirePermission(ctx); err != nil {
		t.Fatalf("second call should park and succeed once refilled: %v", err)
	}
}

func TestContextCancellationStopsWait(t *testing.T) {
	l := New("test", WithLimitForPeriod(1), WithLimitRefreshPeriod(time.Hour), WithTimeoutDuration(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := l.AcquirePermission(ctx); err != nil {
		t.Fatalf("first call rejected: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := l.AcquirePermission(ctx)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !resilienceerrors.IsRequestNotPermitted(err) {
			t.Fatalf("expected RequestNotPermitted on cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AcquirePermission did not return after context cancellation")
	}
}

func TestOnCancelReturnsPermitWithinSameCycle(t *testing.T) {
	l := New("test", WithLimitForPeriod(1), WithLimitRefreshPeriod(time.Hour), WithTimeoutDuration(time.Millisecond))
	ctx := context.Background()

	p, err := l.AcquirePermission(ctx)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	l.OnCancel(p)

	if _, err := l.AcquirePermission(ctx); err != nil {
		t.Fatalf("expected permit returned by OnCancel to be reusable, got %v", err)
	}
}

func TestConcurrentAcquirersNeverExceedLimit(t *testing.T) {
	l := New("test", WithLimitForPeriod(5), WithLimitRefreshPeriod(time.Hour), WithTimeoutDuration(time.Millisecond))
	ctx := context.Background()

	var granted int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.AcquirePermission(ctx); err == nil {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()

	if granted != 5 {
		t.Fatalf("expected exactly 5 grants, got %d", granted)
	}
}
