package host

import (
	"sync"
	"sync/atomic"

	"wiki-relay/pkg/relay"
)

// DefaultQueueSize bounds every port's pending events.
const DefaultQueueSize = 100

// evictingQueue is a bounded channel that drops its oldest entry instead of blocking the
// writer. It supports exactly one writer.
type evictingQueue struct {
	ch      chan relay.Event
	dropped atomic.Uint64
	once    sync.Once
}

func newEvictingQueue(size int) *evictingQueue {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &evictingQueue{ch: make(chan relay.Event, size)}
}

// push never blocks. It returns false when an older event had to be evicted.
func (q *evictingQueue) push(e relay.Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
	}

	select {
	case <-q.ch:
		q.dropped.Add(1)
	default:
	}
	select {
	case q.ch <- e:
	default:
		// only the single writer fills the channel, so this is unreachable in practice
		q.dropped.Add(1)
	}
	return false
}

// close must only be called once the writer is gone.
func (q *evictingQueue) close() {
	q.once.Do(func() { close(q.ch) })
}
