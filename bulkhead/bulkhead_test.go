package bulkhead

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	resilienceerrors "github.com/authplatform/resilience/errors"
)

func TestAcquireUpToCapacity(t *testing.T) {
	b := New("test", WithMaxConcurrentCalls(2))
	ctx := context.Background()

	p1, err := b.AcquirePermission(ctx)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	p2, err := b.AcquirePermission(ctx)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	if _, err := b.AcquirePermission(ctx); !resilienceerrors.IsBulkheadFull(err) {
		t.Fatalf("expected BulkheadFull at capacity, got %v", err)
	}

	b.OnSuccess(p1, time.Millisecond)
	if _, err := b.AcquirePermission(ctx); err != nil {
		t.Fatalf("expected slot free after release, got %v", err)
	}
	b.OnSuccess(p2, time.Millisecond)
}

func TestReleaseIsIdempotentAcrossExitPaths(t *testing.T) {
	b := New("test", WithMaxConcurrentCalls(1))
	ctx := context.Background()

	p, err := b.AcquirePermission(ctx)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	b.OnSuccess(p, time.Millisecond)
	b.OnError(p, time.Millisecond, context.DeadlineExceeded)
	b.OnCancel(p)

	if b.AvailablePermits() != 1 {
		t.Fatalf("expected exactly one release despite triple-reporting, got available=%d", b.AvailablePermits())
	}
}

func TestAcquireParksUntilReleaseWithinWaitDuration(t *testing.T) {
	b := New("test", WithMaxConcurrentCalls(1), WithMaxWaitDuration(time.Second))
	ctx := context.Background()

	p, err := b.AcquirePermission(ctx)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := b.AcquirePermission(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	b.OnSuccess(p, time.Millisecond)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected parked acquirer to succeed after release, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("parked acquirer never woke after release")
	}
}

func TestAcquireTimesOutWithoutRelease(t *testing.T) {
	b := New("test", WithMaxConcurrentCalls(1), WithMaxWaitDuration(20*time.Millisecond))
	ctx := context.Background()

	if _, err := b.AcquirePermission(ctx); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	if _, err := b.AcquirePermission(ctx); !resilienceerrors.IsBulkheadFull(err) {
		t.Fatalf("expected BulkheadFull after wait elapses, got %v", err)
	}
}

func TestConcurrentAcquireNeverExceedsCapacity(t *testing.T) {
	b := New("test", WithMaxConcurrentCalls(5))
	ctx := context.Background()

	var maxObserved int32
	var current int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := b.AcquirePermission(ctx)
			if err != nil {
				return
			}
			c := atomic.AddInt32(&current, 1)
			for {
				m := atomic.LoadInt32(&maxObserved)
				if c <= m || atomic.CompareAndSwapInt32(&maxObserved, m, c) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&current, -1)
			b.OnSuccess(p, time.Millisecond)
		}()
	}
	wg.Wait()

	if maxObserved > 5 {
		t.Fatalf("expected at most 5 concurrent holders, observed %d", maxObserved)
	}
}
