package relay

import (
	"context"
	"errors"
	"io"
	"sync"
)

type connEventKind int

const (
	connOpened connEventKind = iota
	connMessage
	connFailed
	connEnded
)

// connEvent is posted by a connection's reader goroutine to the agent loop.
type connEvent struct {
	gen  uint64
	kind connEventKind
	msg  Message
	err  error
}

// connection is the ConnectionHandle: one upstream subscription and the goroutine reading it.
// Only the agent loop creates and closes connections.
type connection struct {
	gen    uint64
	url    string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	sub Subscription
}

func openConnection(parent context.Context, gen uint64, url string, t Transport, inbox chan<- connEvent) *connection {
	ctx, cancel := context.WithCancel(parent)
	c := &connection{
		gen:    gen,
		url:    url,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run(ctx, t, inbox)
	return c
}

func (c *connection) run(ctx context.Context, t Transport, inbox chan<- connEvent) {
	defer close(c.done)

	sub, err := t.Subscribe(ctx, c.url)
	if err != nil {
		if ctx.Err() == nil {
			c.post(ctx, inbox, connEvent{kind: connFailed, err: asTransportError(c.url, PhaseDial, err)})
		}
		return
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	defer sub.Close()

	if !c.post(ctx, inbox, connEvent{kind: connOpened}) {
		return
	}

	for {
		msg, err := sub.Next()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.post(ctx, inbox, connEvent{kind: connEnded})
			} else {
				c.post(ctx, inbox, connEvent{kind: connFailed, err: asTransportError(c.url, PhaseRead, err)})
			}
			return
		}
		if !c.post(ctx, inbox, connEvent{kind: connMessage, msg: msg}) {
			return
		}
	}
}

// post hands ev to the loop unless the connection was closed meanwhile.
func (c *connection) post(ctx context.Context, inbox chan<- connEvent, ev connEvent) bool {
	ev.gen = c.gen
	select {
	case inbox <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// close cancels the subscription and waits for the reader goroutine to exit, so nothing
// from this connection can reach the loop afterwards.
func (c *connection) close() {
	c.cancel()
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub != nil {
		_ = sub.Close()
	}
	<-c.done
}

func asTransportError(url, phase string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{URL: url, Phase: phase, Err: err}
}
