package ratewindow

import (
	"errors"
	"reflect"
	"testing"
)

func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := New(c); err == nil {
			t.Errorf("expected error for capacity %d", c)
		}
	}
}

func TestEnqueue_NeverExceedsCapacity(t *testing.T) {
	w, _ := New(3)
	for i := int64(0); i < 10; i++ {
		w.Enqueue(i)
		if w.Len() > w.Cap() {
			t.Fatalf("size %d exceeds capacity %d", w.Len(), w.Cap())
		}
	}
}

func TestEnqueue_EvictsOldestKeepingOrder(t *testing.T) {
	const capacity = 4
	for k := 1; k <= 5; k++ {
		w, _ := New(capacity)
		total := capacity + k
		for i := 0; i < total; i++ {
			w.Enqueue(int64(i * 100))
		}
		want := make([]int64, 0, capacity)
		for i := total - capacity; i < total; i++ {
			want = append(want, int64(i*100))
		}
		if got := w.Values(); !reflect.DeepEqual(got, want) {
			t.Errorf("k=%d: got %v, want %v", k, got, want)
		}
		if !w.IsFull() {
			t.Errorf("k=%d: expected window to be full", k)
		}
	}
}

func TestDequeue_Empty(t *testing.T) {
	w, _ := New(2)
	if _, err := w.Dequeue(); !errors.Is(err, ErrEmptyWindow) {
		t.Fatalf("expected ErrEmptyWindow, got %v", err)
	}

	w.Enqueue(5)
	ts, err := w.Dequeue()
	if err != nil || ts != 5 {
		t.Fatalf("expected 5, nil; got %d, %v", ts, err)
	}
	if _, err := w.Dequeue(); !errors.Is(err, ErrEmptyWindow) {
		t.Fatalf("expected ErrEmptyWindow after draining, got %v", err)
	}
}

func TestPeekOldest(t *testing.T) {
	w, _ := New(2)
	if ts, ok := w.PeekOldest(); ok || ts != 0 {
		t.Fatalf("expected empty sentinel (0, false), got (%d, %v)", ts, ok)
	}

	w.Enqueue(10)
	w.Enqueue(20)
	w.Enqueue(30)
	ts, ok := w.PeekOldest()
	if !ok || ts != 20 {
		t.Fatalf("expected oldest 20, got (%d, %v)", ts, ok)
	}
	if w.Len() != 2 {
		t.Errorf("peek must not remove entries, len=%d", w.Len())
	}
}

func TestPredicates(t *testing.T) {
	w, _ := New(1)
	if !w.IsEmpty() || w.IsFull() {
		t.Fatalf("new window: empty=%v full=%v", w.IsEmpty(), w.IsFull())
	}
	w.Enqueue(1)
	if w.IsEmpty() || !w.IsFull() {
		t.Fatalf("after enqueue: empty=%v full=%v", w.IsEmpty(), w.IsFull())
	}
}
