// Package ratelimit implements a fixed-cycle rate limiter. A single
// atomic word packs the active cycle number and the permits remaining
// in it; acquisition is refill-on-read (a reader who observes a stale
// cycle number CASes the word forward to a fresh one before reserving),
// so there is no background refill goroutine. Waiters who arrive after
// a cycle's permits are exhausted park until the next cycle boundary and
// then cooperatively race the CAS reservation again alongside any newly
// arriving caller — nothing is handed to a specific waiter.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/authplatform/resilience"
	"github.com/authplatform/resilience/errors"
	"github.com/authplatform/resilience/eventbus"
)

func packWord(cycle uint32, permits int32) uint64 {
	return uint64(cycle)<<32 | uint64(uint32(permits))
}

func unpackWord(word uint64) (cycle uint32, permits int32) {
	return uint32(word >> 32), int32(uint32(word))
}

type permitPayload struct {
	cycle uint32
}

// Limiter is a single named rate limiter instance.
type Limiter struct {
	name   string
	config Config
	start  time.Time
	now    func() time.Time

	word atomic.Uint64

	correlationFn resilience.CorrelationFunc
	bus           *eventbus.Bus[Event]
}

var _ resilience.Gate = (*Limiter)(nil)

// New creates a Limiter with its first cycle already active.
func New(name string, opts ...Option) *Limiter {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	l := &Limiter{
		name:          name,
		config:        cfg,
		start:         resilience.NowUTC(),
		now:           resilience.NowUTC,
		correlationFn: resilience.EnsureCorrelationFunc(cfg.CorrelationFn),
		bus:           eventbus.New[Event](eventbus.DefaultCapacity),
	}
	l.word.Store(packWord(0, cfg.LimitForPeriod))
	return l
}

// Name returns the limiter's stable identity.
func (l *Limiter) Name() string { return l.name }

// Events returns the limiter's event bus for subscribing to acquisition
// outcomes.
func (l *Limiter) Events() *eventbus.Bus[Event] { return l.bus }

func (l *Limiter) emit(kind EventKind) {
	l.bus.Publish(Event{
		Kind:          kind,
		PolicyName:    l.name,
		CorrelationID: l.correlationFn(),
		Timestamp:     l.now(),
	})
}

func (l *Limiter) cycleFor(t time.Time) uint32 {
	elapsed := t.Sub(l.start)
	if elapsed < 0 {
		return 0
	}
	return uint32(elapsed / l.config.LimitRefreshPeriod)
}

func (l *Limiter) cycleStart(cycle uint32) time.Time {
	return l.start.Add(time.Duration(cycle) * l.config.LimitRefreshPeriod)
}

// PermitsRemaining reports the permits left in the currently active
// cycle, refilling first if the cycle has rolled over.
func (l *Limiter) PermitsRemaining() int32 {
	now := l.now()
	cycle := l.cycleFor(now)
	for {
		word := l.word.Load()
		storedCycle, permits := unpackWord(word)
		if storedCycle == cycle {
			return permits
		}
		if l.word.CompareAndSwap(word, packWord(cycle, l.config.LimitForPeriod)) {
			return l.config.LimitForPeriod
		}
	}
}

// AcquirePermission reserves one permit, parking until the next cycle
// boundary if the current one is exhausted, up to TimeoutDuration or an
// earlier context deadline, whichever comes first.
func (l *Limiter) AcquirePermission(ctx context.Context) (resilience.Permit, error) {
	deadline := l.now().Add(l.config.TimeoutDuration)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		now := l.now()
		cycle := l.cycleFor(now)
		word := l.word.Load()
		storedCycle, permits := unpackWord(word)

		if storedCycle != cycle {
			l.word.CompareAndSwap(word, packWord(cycle, l.config.LimitForPeriod))
			continue
		}

		if permits > 0 {
			if l.word.CompareAndSwap(word, packWord(storedCycle, permits-1)) {
				l.emit(EventSuccessfulAcquire)
				return resilience.NewPermit(permitPayload{cycle: storedCycle}), nil
			}
			continue
		}

		remaining := deadline.Sub(now)
		if remaining <= 0 {
			l.emit(EventFailedAcquire)
			return resilience.Permit{}, errors.NewRequestNotPermitted(l.name, 0)
		}

		waitFor := l.cycleStart(cycle + 1).Sub(now)
		if waitFor <= 0 {
			continue
		}
		if waitFor > remaining {
			waitFor = remaining
		}

		timer := time.NewTimer(waitFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.emit(EventFailedAcquire)
			return resilience.Permit{}, errors.NewRequestNotPermitted(l.name, 0)
		case <-timer.C:
			// Loop back around: re-read the word, which may now be a
			// fresh cycle, or may still be exhausted if deadline cut
			// the wait short.
		}
	}
}

// OnSuccess is a no-op: a rate limiter's permit budget does not depend
// on call outcome.
func (l *Limiter) OnSuccess(p resilience.Permit, duration time.Duration) {}

// OnError is a no-op for the same reason as OnSuccess.
func (l *Limiter) OnError(p resilience.Permit, duration time.Duration, err error) {}

// OnCancel makes a best-effort attempt to return the reserved permit to
// its originating cycle, if that cycle is still active. A permit whose
// cycle has already rolled over is simply dropped, since the new cycle
// has already refilled independently.
func (l *Limiter) OnCancel(p resilience.Permit) {
	payload, ok := p.Value().(permitPayload)
	if !ok {
		return
	}
	for {
		word := l.word.Load()
		cycle, permits := unpackWord(word)
		if cycle != payload.cycle || permits >= l.config.LimitForPeriod {
			return
		}
		if l.word.CompareAndSwap(word, packWord(cycle, permits+1)) {
			return
		}
	}
}
