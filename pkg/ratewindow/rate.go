package ratewindow

import (
	"math"
	"sync"
	"time"
)

const msPerMinute = 60_000

// MinElapsedMs is the smallest span Rate divides by. Timestamps that all coincide with
// now (or lie after it through clock skew) are treated as one millisecond old.
const MinElapsedMs = 1

// Rate prunes entries older than maxAgeMs and returns events per minute over the
// remaining span. An entry exactly maxAgeMs old is pruned. Rates below one are rounded
// to one decimal place, everything else to the nearest integer.
func Rate(w *Window, now, maxAgeMs int64) float64 {
	for {
		oldest, ok := w.PeekOldest()
		if !ok || oldest+maxAgeMs > now {
			break
		}
		// PeekOldest just succeeded, so Dequeue cannot fail here.
		_, _ = w.Dequeue()
	}

	oldest, ok := w.PeekOldest()
	if !ok {
		return 0
	}

	elapsedMs := now - oldest
	if elapsedMs < MinElapsedMs {
		elapsedMs = MinElapsedMs
	}
	rate := float64(w.Len()) / (float64(elapsedMs) / msPerMinute)
	if rate < 1.0 {
		return math.Round(rate*10) / 10.0
	}
	return math.Round(rate)
}

// Clock allows deterministic testing.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Estimator pairs a Window with a horizon. Unlike Window it is safe for concurrent use,
// since telemetry readers and writers live on different goroutines.
type Estimator struct {
	mu      sync.Mutex
	window  *Window
	horizon time.Duration
	clock   Clock
}

// NewEstimator builds an estimator retaining at most capacity timestamps no older than horizon.
func NewEstimator(capacity int, horizon time.Duration, clock Clock) (*Estimator, error) {
	w, err := New(capacity)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Estimator{window: w, horizon: horizon, clock: clock}, nil
}

// Observe records an event arrival at t.
func (e *Estimator) Observe(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window.Enqueue(t.UnixMilli())
}

// Mark records an event arrival now.
func (e *Estimator) Mark() {
	e.Observe(e.clock.Now())
}

// Rate returns the events-per-minute rate at the estimator clock's current time.
func (e *Estimator) Rate() float64 {
	return e.RateAt(e.clock.Now())
}

// RateAt returns the events-per-minute rate as of now.
func (e *Estimator) RateAt(now time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Rate(e.window, now.UnixMilli(), e.horizon.Milliseconds())
}

// Len is the number of timestamps currently retained.
func (e *Estimator) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window.Len()
}
