// Package circuitbreaker implements a lock-free CLOSED/OPEN/HALF_OPEN/
// DISABLED/FORCED_OPEN circuit breaker state machine. State and a
// monotonic generation counter are packed into one atomic word so every
// transition is a single CompareAndSwap, and every acquired Permit is
// stamped with the generation active when permission was granted, so a
// late outcome from a stale generation is silently discarded instead of
// corrupting the window a subsequent generation is accumulating into.
package circuitbreaker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/authplatform/resilience"
	"github.com/authplatform/resilience/errors"
	"github.com/authplatform/resilience/eventbus"
	"github.com/authplatform/resilience/window"
)

type permitPayload struct {
	generation uint64
	win        window.Window
	acquiredIn State
}

// Breaker is a single named circuit breaker instance.
type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	word atomic.Uint64 // pack(generation, state)
	win  atomic.Pointer[window.Window]

	halfOpenPermits     atomic.Int32
	openedAtNano        atomic.Int64
	halfOpenEnteredNano atomic.Int64
	openTimer           atomic.Pointer[time.Timer]

	correlationFn resilience.CorrelationFunc
	bus           *eventbus.Bus[Event]
}

var _ resilience.Gate = (*Breaker)(nil)

// New creates a Breaker in the CLOSED state.
func New(name string, opts ...Option) *Breaker {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &Breaker{
		name:          name,
		config:        cfg,
		now:           resilience.NowUTC,
		correlationFn: resilience.EnsureCorrelationFunc(cfg.CorrelationFn),
		bus:           eventbus.New[Event](eventbus.DefaultCapacity),
	}
	w := cfg.newWindow(b.now)
	b.win.Store(&w)
	b.word.Store(pack(0, StateClosed))
	return b
}

// Name returns the breaker's stable identity.
func (b *Breaker) Name() string { return b.name }

// State returns the breaker's current state.
func (b *Breaker) State() State {
	_, state := unpack(b.word.Load())
	return state
}

// Events returns the breaker's event bus for subscribing to state
// transitions and call outcomes.
func (b *Breaker) Events() *eventbus.Bus[Event] { return b.bus }

// Snapshot returns the current outcome window's aggregate for the
// generation presently active.
func (b *Breaker) Snapshot() window.Snapshot {
	return (*b.win.Load()).Snapshot()
}

// AcquirePermission requests permission to proceed. It never blocks: a
// circuit breaker either grants immediately or rejects immediately.
func (b *Breaker) AcquirePermission(ctx context.Context) (resilience.Permit, error) {
	for {
		word := b.word.Load()
		generation, state := unpack(word)

		switch state {
		case StateClosed, StateDisabled:
			win := *b.win.Load()
			return resilience.NewPermit(permitPayload{generation: generation, win: win, acquiredIn: state}), nil

		case StateForcedOpen:
			b.emitNotPermitted()
			return resilience.Permit{}, errors.NewCallNotPermitted(b.name, "FORCED_OPEN")

		case StateOpen:
			// The lazy on-acquire transition happens unconditionally once
			// the wait has elapsed; AutomaticTransitionFromOpenToHalfOpen
			// only additionally arms a background timer (see
			// scheduleAutomaticHalfOpenTransition) that performs the same
			// transition without waiting for a caller. A breaker built
			// with the flag disabled must still recover once called
			// again after the wait — it must never deny forever.
			openedAt := time.Unix(0, b.openedAtNano.Load())
			if b.now().Sub(openedAt) < b.config.WaitDurationInOpenState {
				b.emitNotPermitted()
				return resilience.Permit{}, errors.NewCallNotPermitted(b.name, "OPEN")
			}
			b.tryLazyHalfOpenTransition(generation)
			// Whether this goroutine won the CAS, lost it to a peer, or
			// lost it to the scheduled timer, re-read the (now
			// HALF_OPEN, or still racing) state.
			continue

		case StateHalfOpen:
			if b.config.MaxWaitDurationInHalfOpenState > 0 {
				enteredAt := time.Unix(0, b.halfOpenEnteredNano.Load())
				if b.now().Sub(enteredAt) >= b.config.MaxWaitDurationInHalfOpenState {
					b.transitionToOpen(generation)
					continue
				}
			}
			remaining := b.halfOpenPermits.Add(-1)
			if remaining < 0 {
				b.halfOpenPermits.Add(1)
				b.emitNotPermitted()
				return resilience.Permit{}, errors.NewCallNotPermitted(b.name, "HALF_OPEN")
			}
			win := *b.win.Load()
			return resilience.NewPermit(permitPayload{generation: generation, win: win, acquiredIn: state}), nil

		default:
			return resilience.Permit{}, errors.NewCallNotPermitted(b.name, state.String())
		}
	}
}

// OnSuccess records a successful call against the generation it was
// acquired under, then re-evaluates whether a transition is due.
func (b *Breaker) OnSuccess(p resilience.Permit, duration time.Duration) {
	payload, ok := p.Value().(permitPayload)
	if !ok {
		return
	}
	generation, state := unpack(b.word.Load())
	if generation != payload.generation {
		return
	}
	slow := duration >= b.config.SlowCallDurationThreshold
	payload.win.Record(window.Outcome{Failed: false, Slow: slow})
	b.emitOutcome(EventSuccess, duration, nil)
	b.evaluateAfterRecord(payload.generation, state, payload.win)
}

// OnError records a failed call, unless RecordFailurePredicate says it
// should be ignored, then re-evaluates whether a transition is due.
func (b *Breaker) OnError(p resilience.Permit, duration time.Duration, err error) {
	payload, ok := p.Value().(permitPayload)
	if !ok {
		return
	}
	if !b.config.RecordFailurePredicate(err) {
		b.emitOutcome(EventIgnoredError, duration, err)
		return
	}
	generation, state := unpack(b.word.Load())
	if generation != payload.generation {
		return
	}
	slow := duration >= b.config.SlowCallDurationThreshold
	payload.win.Record(window.Outcome{Failed: true, Slow: slow})
	b.emitOutcome(EventError, duration, err)
	b.evaluateAfterRecord(payload.generation, state, payload.win)
}

// OnCancel releases an unused HALF_OPEN trial slot without recording an
// outcome. CLOSED/DISABLED calls hold no reservable resource, so this is
// a no-op for them.
func (b *Breaker) OnCancel(p resilience.Permit) {
	payload, ok := p.Value().(permitPayload)
	if !ok || payload.acquiredIn != StateHalfOpen {
		return
	}
	generation, state := unpack(b.word.Load())
	if generation == payload.generation && state == StateHalfOpen {
		b.halfOpenPermits.Add(1)
	}
}

// ClassifyResult reports whether result (returned without error) should
// count as a recordable failure, per RecordResultPredicate.
func (b *Breaker) ClassifyResult(result any) bool {
	if b.config.RecordResultPredicate == nil {
		return false
	}
	return b.config.RecordResultPredicate(result)
}

func (b *Breaker) evaluateAfterRecord(generation uint64, state State, win window.Window) {
	snap := win.Snapshot()
	failureExceeded := snap.FailureRate >= 0 && snap.FailureRate*100 >= b.config.FailureRateThreshold
	slowExceeded := snap.SlowCallRate >= 0 && snap.SlowCallRate*100 >= b.config.SlowCallRateThreshold
	breaches := failureExceeded || slowExceeded
	if failureExceeded {
		b.emitOutcome(EventFailureRateExceeded, 0, nil)
	}
	if slowExceeded {
		b.emitOutcome(EventSlowCallRateExceeded, 0, nil)
	}

	switch state {
	case StateClosed:
		if breaches {
			b.transitionToOpen(generation)
		}
	case StateHalfOpen:
		if snap.TotalCalls < int64(b.config.PermittedCallsInHalfOpenState) {
			return
		}
		if breaches {
			b.transitionToOpen(generation)
		} else {
			b.transitionToClosed(generation)
		}
	}
}

// tryLazyHalfOpenTransition moves the breaker from OPEN to HALF_OPEN if
// it is still at fromGeneration in the OPEN state and
// WaitDurationInOpenState has elapsed since it entered OPEN. It is
// called both from AcquirePermission's lazy on-acquire path and from
// the scheduled automatic-transition timer; a losing CAS, an elapsed
// check that hasn't yet elapsed, or a generation that has already moved
// on are all silent no-ops.
func (b *Breaker) tryLazyHalfOpenTransition(fromGeneration uint64) {
	word := b.word.Load()
	generation, state := unpack(word)
	if generation != fromGeneration || state != StateOpen {
		return
	}
	openedAt := time.Unix(0, b.openedAtNano.Load())
	if b.now().Sub(openedAt) < b.config.WaitDurationInOpenState {
		return
	}
	newWord := pack(generation+1, StateHalfOpen)
	if b.word.CompareAndSwap(word, newWord) {
		w := b.config.newWindow(b.now)
		b.win.Store(&w)
		b.halfOpenPermits.Store(int32(b.config.PermittedCallsInHalfOpenState))
		b.halfOpenEnteredNano.Store(b.now().UnixNano())
		b.emitTransition(generation+1, StateOpen, StateHalfOpen)
	}
}

// scheduleAutomaticHalfOpenTransition arms a single-shot timer that
// performs the same OPEN->HALF_OPEN transition proactively, without
// waiting for a caller to invoke AcquirePermission again. Any
// previously armed timer for an earlier OPEN entry is cancelled first.
// This is pure convenience: tryLazyHalfOpenTransition is keyed on
// generation, so a cancelled, superseded, or never-armed timer never
// leaves the breaker unable to recover.
func (b *Breaker) scheduleAutomaticHalfOpenTransition(generation uint64) {
	b.stopOpenTimer()
	if !b.config.AutomaticTransitionFromOpenToHalfOpen {
		return
	}
	b.openTimer.Store(time.AfterFunc(b.config.WaitDurationInOpenState, func() {
		b.tryLazyHalfOpenTransition(generation)
	}))
}

func (b *Breaker) stopOpenTimer() {
	if old := b.openTimer.Swap(nil); old != nil {
		old.Stop()
	}
}

func (b *Breaker) transitionToOpen(fromGeneration uint64) {
	_, fromState := unpack(b.word.Load())
	newGeneration := fromGeneration + 1
	newWord := pack(newGeneration, StateOpen)
	if !b.word.CompareAndSwap(pack(fromGeneration, fromState), newWord) {
		return
	}
	b.openedAtNano.Store(b.now().UnixNano())
	b.emitTransition(newGeneration, fromState, StateOpen)
	b.scheduleAutomaticHalfOpenTransition(newGeneration)
}

func (b *Breaker) transitionToClosed(fromGeneration uint64) {
	_, fromState := unpack(b.word.Load())
	newWord := pack(fromGeneration+1, StateClosed)
	if !b.word.CompareAndSwap(pack(fromGeneration, fromState), newWord) {
		return
	}
	b.stopOpenTimer()
	w := b.config.newWindow(b.now)
	b.win.Store(&w)
	b.emitTransition(fromGeneration+1, fromState, StateClosed)
}

// TransitionToForcedOpen forces the breaker into FORCED_OPEN regardless
// of the current window state.
func (b *Breaker) TransitionToForcedOpen() {
	word := b.word.Load()
	generation, from := unpack(word)
	if b.word.CompareAndSwap(word, pack(generation+1, StateForcedOpen)) {
		b.stopOpenTimer()
		b.emitTransition(generation+1, from, StateForcedOpen)
	}
}

// TransitionToDisabled forces the breaker into DISABLED, where every
// call is permitted and outcomes are still recorded but never trigger a
// transition.
func (b *Breaker) TransitionToDisabled() {
	word := b.word.Load()
	generation, from := unpack(word)
	if b.word.CompareAndSwap(word, pack(generation+1, StateDisabled)) {
		b.stopOpenTimer()
		b.emitTransition(generation+1, from, StateDisabled)
	}
}

// Reset forces the breaker back to CLOSED with a fresh window.
func (b *Breaker) Reset() {
	word := b.word.Load()
	generation, from := unpack(word)
	if b.word.CompareAndSwap(word, pack(generation+1, StateClosed)) {
		b.stopOpenTimer()
		w := b.config.newWindow(b.now)
		b.win.Store(&w)
		b.emitTransition(generation+1, from, StateClosed)
		b.emitOutcome(EventReset, 0, nil)
	}
}

// emitNotPermitted publishes a rejection event for a denied
// AcquirePermission call.
func (b *Breaker) emitNotPermitted() {
	b.bus.Publish(Event{
		Kind:          EventNotPermitted,
		PolicyName:    b.name,
		CorrelationID: b.correlationFn(),
		Timestamp:     b.now(),
	})
}

// emitOutcome publishes a call-outcome or lifecycle event not tied to a
// state transition.
func (b *Breaker) emitOutcome(kind EventKind, duration time.Duration, err error) {
	b.bus.Publish(Event{
		Kind:          kind,
		PolicyName:    b.name,
		CorrelationID: b.correlationFn(),
		Timestamp:     b.now(),
		Duration:      duration,
		Err:           err,
	})
}

func (b *Breaker) emitTransition(generation uint64, from, to State) {
	if from == to {
		return
	}
	b.bus.Publish(Event{
		Kind:          EventStateTransition,
		PolicyName:    b.name,
		CorrelationID: b.correlationFn(),
		Timestamp:     b.now(),
		FromState:     from,
		ToState:       to,
		Generation:    generation,
	})
}
