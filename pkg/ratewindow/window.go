package ratewindow

import (
	"errors"
	"fmt"
)

// ErrEmptyWindow is returned by Dequeue on an empty window. Callers check IsEmpty first;
// hitting it means a contract violation in the caller.
var ErrEmptyWindow = errors.New("can't dequeue from empty window")

// Window is a fixed-capacity ring buffer of millisecond timestamps, oldest first.
// It is not safe for concurrent use; each window has a single owner.
type Window struct {
	buf  []int64
	head int
	tail int
	size int
}

// New creates a window holding at most capacity timestamps.
func New(capacity int) (*Window, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("window capacity must be positive, got %d", capacity)
	}
	return &Window{buf: make([]int64, capacity)}, nil
}

// Enqueue appends ts. A full window drops its oldest entry first, so the newest
// observation is always kept.
func (w *Window) Enqueue(ts int64) {
	if w.IsFull() {
		w.head = (w.head + 1) % len(w.buf)
		w.size--
	}
	w.buf[w.tail] = ts
	w.tail = (w.tail + 1) % len(w.buf)
	w.size++
}

// Dequeue removes and returns the oldest entry.
func (w *Window) Dequeue() (int64, error) {
	if w.size == 0 {
		return 0, ErrEmptyWindow
	}
	ts := w.buf[w.head]
	w.head = (w.head + 1) % len(w.buf)
	w.size--
	return ts, nil
}

// PeekOldest returns the oldest entry without removing it. ok is false on an empty window.
func (w *Window) PeekOldest() (ts int64, ok bool) {
	if w.size == 0 {
		return 0, false
	}
	return w.buf[w.head], true
}

func (w *Window) IsEmpty() bool { return w.size == 0 }
func (w *Window) IsFull() bool  { return w.size == len(w.buf) }
func (w *Window) Len() int      { return w.size }
func (w *Window) Cap() int      { return len(w.buf) }

// Values returns the retained timestamps, oldest first.
func (w *Window) Values() []int64 {
	out := make([]int64, 0, w.size)
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[(w.head+i)%len(w.buf)])
	}
	return out
}
