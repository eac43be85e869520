package downloader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a read-only view of download progress handed to renderers.
type Snapshot struct {
	Fraction     float64
	Speed        float64 // bytes per second over the last sample window
	ETA          time.Duration
	ETAKnown     bool
	Downloaded   int64
	Total        int64
	FailedChunks int
	Elapsed      time.Duration
}

// Aggregator accumulates per-chunk byte counts into total progress.
// Counters are atomic; the derived sum and sampling state share one mutex.
type Aggregator struct {
	total    int64
	start    time.Time
	counters []atomic.Int64
	failed   func() int
	interval time.Duration
	now      func() time.Time

	mu              sync.Mutex
	sum             int64
	lastSampleAt    time.Time
	lastSampleTotal int64
	speed           float64
}

func NewAggregator(session *Session, interval time.Duration) *Aggregator {
	return newAggregator(session, interval, time.Now)
}

func newAggregator(session *Session, interval time.Duration, now func() time.Time) *Aggregator {
	started := now()
	return &Aggregator{
		total:        session.TotalSize,
		start:        started,
		counters:     make([]atomic.Int64, len(session.Chunks)),
		failed:       session.FailedChunks,
		interval:     interval,
		now:          now,
		lastSampleAt: started,
	}
}

// ChunkCompleted records that the chunk at index holds n bytes.
func (a *Aggregator) ChunkCompleted(index int, n int64) {
	old := a.counters[index].Swap(n)
	a.mu.Lock()
	a.sum += n - old
	a.mu.Unlock()
}

func (a *Aggregator) Downloaded() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sum
}

// Snapshot reports current totals with the speed of the last sample.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(a.now())
}

// Sample recomputes throughput and returns a snapshot, unless the previous
// sample is younger than the sampling interval.
func (a *Aggregator) Sample() (Snapshot, bool) {
	return a.sampleAt(a.now())
}

// sampleAt samples as of now. Watch passes the tick time so that delivery
// latency of one tick does not push the next one under the interval.
func (a *Aggregator) sampleAt(now time.Time) (Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	elapsed := now.Sub(a.lastSampleAt)
	if elapsed < a.interval || elapsed <= 0 {
		return Snapshot{}, false
	}
	elapsedMs := float64(elapsed) / float64(time.Millisecond)
	a.speed = float64(a.sum-a.lastSampleTotal) * 1000 / elapsedMs
	a.lastSampleAt = now
	a.lastSampleTotal = a.sum
	return a.snapshotLocked(now), true
}

// Watch samples on every interval tick and hands snapshots to emit until ctx
// is done.
func (a *Aggregator) Watch(ctx context.Context, emit func(Snapshot)) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			if snap, ok := a.sampleAt(tick); ok && emit != nil {
				emit(snap)
			}
		}
	}
}

func (a *Aggregator) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		Fraction:     1,
		Speed:        a.speed,
		Downloaded:   a.sum,
		Total:        a.total,
		FailedChunks: a.failed(),
		Elapsed:      now.Sub(a.start),
	}
	if a.total > 0 {
		snap.Fraction = float64(a.sum) / float64(a.total)
	}
	if a.speed > 0 {
		remaining := float64(a.total - a.sum)
		snap.ETA = time.Duration(remaining / a.speed * float64(time.Second))
		snap.ETAKnown = true
	}
	return snap
}
