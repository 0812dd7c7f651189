// Package bulkhead implements a bounded-concurrency gate: a counting
// semaphore whose available-permit count lives in a single
// atomic.Int32, reserved and released via CAS with no lock on the hot
// path. A released permit wakes any goroutine parked in
// AcquirePermission through a channel-broadcast idiom rather than a
// sync.Cond, so waiters can also select on context cancellation and a
// wait-duration timer in the same statement.
package bulkhead

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/authplatform/resilience"
	"github.com/authplatform/resilience/errors"
	"github.com/authplatform/resilience/eventbus"
)

// broadcaster lets any number of parked waiters be woken by a single
// release, by swapping in a fresh channel and closing the old one.
type broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{ch: make(chan struct{})}
}

func (b *broadcaster) wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

func (b *broadcaster) broadcast() {
	b.mu.Lock()
	old := b.ch
	b.ch = make(chan struct{})
	b.mu.Unlock()
	close(old)
}

type permitPayload struct {
	released *sync.Once
}

// Bulkhead is a single named bounded-concurrency gate.
type Bulkhead struct {
	name   string
	config Config
	now    func() time.Time

	available atomic.Int32
	notify    *broadcaster

	correlationFn resilience.CorrelationFunc
	bus           *eventbus.Bus[Event]
}

var _ resilience.Gate = (*Bulkhead)(nil)

// New creates a Bulkhead with its full concurrency budget available.
func New(name string, opts ...Option) *Bulkhead {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &Bulkhead{
		name:          name,
		config:        cfg,
		now:           resilience.NowUTC,
		notify:        newBroadcaster(),
		correlationFn: resilience.EnsureCorrelationFunc(cfg.CorrelationFn),
		bus:           eventbus.New[Event](eventbus.DefaultCapacity),
	}
	b.available.Store(cfg.MaxConcurrentCalls)
	return b
}

// Name returns the bulkhead's stable identity.
func (b *Bulkhead) Name() string { return b.name }

// Events returns the bulkhead's event bus for subscribing to admission
// and completion outcomes.
func (b *Bulkhead) Events() *eventbus.Bus[Event] { return b.bus }

func (b *Bulkhead) emit(kind EventKind) {
	b.bus.Publish(Event{
		Kind:          kind,
		PolicyName:    b.name,
		CorrelationID: b.correlationFn(),
		Timestamp:     b.now(),
	})
}

// AvailablePermits returns the number of concurrent-call slots currently
// free.
func (b *Bulkhead) AvailablePermits() int32 { return b.available.Load() }

// MaxConcurrentCalls returns the configured concurrency budget.
func (b *Bulkhead) MaxConcurrentCalls() int32 { return b.config.MaxConcurrentCalls }

func (b *Bulkhead) tryAcquire() bool {
	for {
		cur := b.available.Load()
		if cur <= 0 {
			return false
		}
		if b.available.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

func (b *Bulkhead) release() {
	for {
		cur := b.available.Load()
		if cur >= b.config.MaxConcurrentCalls {
			return
		}
		if b.available.CompareAndSwap(cur, cur+1) {
			b.notify.broadcast()
			return
		}
	}
}

// AcquirePermission reserves one of MaxConcurrentCalls slots, parking
// until one frees up, up to MaxWaitDuration or an earlier context
// deadline, whichever comes first. A zero MaxWaitDuration means "return
// immediately if full."
func (b *Bulkhead) AcquirePermission(ctx context.Context) (resilience.Permit, error) {
	if b.tryAcquire() {
		b.emit(EventCallPermitted)
		return resilience.NewPermit(permitPayload{released: &sync.Once{}}), nil
	}
	if b.config.MaxWaitDuration <= 0 {
		b.emit(EventCallRejected)
		return resilience.Permit{}, errors.NewBulkheadFull(b.name, int(b.config.MaxConcurrentCalls))
	}

	deadline := b.now().Add(b.config.MaxWaitDuration)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		remaining := deadline.Sub(b.now())
		if remaining <= 0 {
			b.emit(EventCallRejected)
			return resilience.Permit{}, errors.NewBulkheadFull(b.name, int(b.config.MaxConcurrentCalls))
		}

		signal := b.notify.wait()
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			b.emit(EventCallRejected)
			return resilience.Permit{}, errors.NewBulkheadFull(b.name, int(b.config.MaxConcurrentCalls))
		case <-timer.C:
		case <-signal:
			timer.Stop()
		}

		if b.tryAcquire() {
			b.emit(EventCallPermitted)
			return resilience.NewPermit(permitPayload{released: &sync.Once{}}), nil
		}
	}
}

// OnSuccess releases the acquired slot.
func (b *Bulkhead) OnSuccess(p resilience.Permit, duration time.Duration) {
	b.releasePermit(p)
}

// OnError releases the acquired slot.
func (b *Bulkhead) OnError(p resilience.Permit, duration time.Duration, err error) {
	b.releasePermit(p)
}

// OnCancel releases the acquired slot without recording an outcome.
func (b *Bulkhead) OnCancel(p resilience.Permit) {
	b.releasePermit(p)
}

// releasePermit guarantees the underlying slot is returned exactly once
// per successful acquisition, no matter which of OnSuccess/OnError/
// OnCancel is the first to observe it.
func (b *Bulkhead) releasePermit(p resilience.Permit) {
	payload, ok := p.Value().(permitPayload)
	if !ok {
		return
	}
	payload.released.Do(func() {
		b.release()
		b.emit(EventCallFinished)
	})
}
