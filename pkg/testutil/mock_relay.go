package testutil

import (
	"context"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// Secret key test vector from NIP-19, in both encodings.
const (
	TestSKHex  = "67dea2ed018072d675f5415ecfaed7d2597555e202d85b3d65ea4e58d2d92ffa"
	TestSKNsec = "nsec1vl029mgpspedva04g90vltkh6fvh240zqtv9k0t9af8935ke9laqsnlfe5"
)

// MockRelay implements mirror.Relay for tests.
type MockRelay struct {
	mu sync.Mutex

	PublishError error
	CloseError   error

	PublishCalls []nostr.Event
	CloseCalled  bool
}

func (m *MockRelay) Publish(ctx context.Context, event nostr.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls = append(m.PublishCalls, event)
	return m.PublishError
}

func (m *MockRelay) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return m.CloseError
}

// Published returns a copy of the events passed to Publish so far.
func (m *MockRelay) Published() []nostr.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]nostr.Event, len(m.PublishCalls))
	copy(out, m.PublishCalls)
	return out
}
