package window

import (
	"sync"
	"sync/atomic"
	"time"
)

type timeBucket struct {
	mu          sync.Mutex
	epochSecond int64
	total       int64
	failed      int64
	slow        int64
}

// TimeWindow aggregates outcomes into numBuckets one-wall-second buckets,
// so it always reflects roughly the last numBuckets seconds. Each bucket
// is epoch-tagged with the Unix second it represents; a write or a
// Snapshot that finds a bucket's epoch has fallen outside the window
// clears it and backs its stale contribution out of the running totals,
// so a quiet bucket does not linger in the aggregate once its second has
// passed.
type TimeWindow struct {
	buckets      []timeBucket
	minimumCalls int
	now          func() time.Time

	totalCalls  atomic.Int64
	failedCalls atomic.Int64
	slowCalls   atomic.Int64
}

// NewTimeWindow creates a TimeWindow spanning numBuckets wall-clock
// seconds, gating its rates behind minimumCalls. now defaults to
// time.Now when nil, and exists as a seam for deterministic tests.
func NewTimeWindow(numBuckets int, minimumCalls int, now func() time.Time) *TimeWindow {
	if numBuckets <= 0 {
		numBuckets = 1
	}
	if now == nil {
		now = time.Now
	}
	return &TimeWindow{
		buckets:      make([]timeBucket, numBuckets),
		minimumCalls: minimumCalls,
		now:          now,
	}
}

func (w *TimeWindow) bucketFor(epoch int64) *timeBucket {
	return &w.buckets[epoch%int64(len(w.buckets))]
}

// clearIfStale must be called with b.mu held. It zeroes b and backs its
// prior contribution out of the running aggregates if b no longer falls
// within the window ending at nowSecond.
func (w *TimeWindow) clearIfStale(b *timeBucket, nowSecond int64) {
	if b.epochSecond == 0 {
		return
	}
	age := nowSecond - b.epochSecond
	if age >= 0 && age < int64(len(w.buckets)) {
		return
	}
	w.totalCalls.Add(-b.total)
	w.failedCalls.Add(-b.failed)
	w.slowCalls.Add(-b.slow)
	b.epochSecond = 0
	b.total, b.failed, b.slow = 0, 0, 0
}

// Record adds o to the bucket for the current wall second.
func (w *TimeWindow) Record(o Outcome) {
	nowSecond := w.now().Unix()
	b := w.bucketFor(nowSecond)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.epochSecond != nowSecond {
		w.clearIfStale(b, nowSecond)
		b.epochSecond = nowSecond
	}
	b.total++
	if o.Failed {
		b.failed++
	}
	if o.Slow {
		b.slow++
	}
	w.totalCalls.Add(1)
	if o.Failed {
		w.failedCalls.Add(1)
	}
	if o.Slow {
		w.slowCalls.Add(1)
	}
}

// Snapshot evicts any buckets that have aged out of the window (even if
// nothing has been recorded into them since) and returns the resulting
// aggregate.
func (w *TimeWindow) Snapshot() Snapshot {
	nowSecond := w.now().Unix()
	for i := range w.buckets {
		b := &w.buckets[i]
		b.mu.Lock()
		w.clearIfStale(b, nowSecond)
		b.mu.Unlock()
	}

	total := w.totalCalls.Load()
	failed := w.failedCalls.Load()
	slow := w.slowCalls.Load()
	return Snapshot{
		TotalCalls:   total,
		FailedCalls:  failed,
		SlowCalls:    slow,
		FailureRate:  rate(failed, total, w.minimumCalls),
		SlowCallRate: rate(slow, total, w.minimumCalls),
	}
}

// Reset clears every bucket and aggregate.
func (w *TimeWindow) Reset() {
	for i := range w.buckets {
		b := &w.buckets[i]
		b.mu.Lock()
		b.epochSecond = 0
		b.total, b.failed, b.slow = 0, 0, 0
		b.mu.Unlock()
	}
	w.totalCalls.Store(0)
	w.failedCalls.Store(0)
	w.slowCalls.Store(0)
}
