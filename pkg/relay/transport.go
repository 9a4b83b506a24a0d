package relay

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one message read from an upstream subscription.
type Message struct {
	Event string // event name, "message" when the stream does not name it
	ID    string
	Data  string
	Retry int // reconnection hint in ms, informational only
}

// Subscription is a single live upstream connection.
type Subscription interface {
	// Next blocks for the next message. io.EOF means the remote side closed the stream.
	Next() (Message, error)
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Transport opens upstream subscriptions. Cancelling ctx must unblock any pending Next.
type Transport interface {
	Subscribe(ctx context.Context, rawURL string) (Subscription, error)
}

// Event is a decoded upstream event handed to consumers. Data is passed through unmodified.
type Event struct {
	Name     string          `json:"name"`
	ID       string          `json:"id,omitempty"`
	Data     json.RawMessage `json:"data"`
	Received time.Time       `json:"received"`
}

// Handler receives events in arrival order. Handlers run on the agent's loop goroutine and
// must not block or call back into the agent synchronously.
type Handler func(Event)
