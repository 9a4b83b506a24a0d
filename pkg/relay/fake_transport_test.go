package relay

import (
	"context"
	"errors"
	"sync"
)

var errSubClosed = errors.New("subscription closed")

type fakeSub struct {
	url    string
	msgs   chan Message
	fail   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeSub(url string) *fakeSub {
	return &fakeSub{
		url:    url,
		msgs:   make(chan Message),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeSub) Next() (Message, error) {
	select {
	case m := <-s.msgs:
		return m, nil
	case err := <-s.fail:
		return Message{}, err
	case <-s.closed:
		return Message{}, errSubClosed
	}
}

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSub) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeTransport struct {
	mu           sync.Mutex
	subs         []*fakeSub
	subscribeErr error
	subscribed   chan *fakeSub
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subscribed: make(chan *fakeSub, 16)}
}

func (t *fakeTransport) Subscribe(ctx context.Context, rawURL string) (Subscription, error) {
	t.mu.Lock()
	err := t.subscribeErr
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s := newFakeSub(rawURL)
	t.mu.Lock()
	t.subs = append(t.subs, s)
	t.mu.Unlock()
	t.subscribed <- s
	return s, nil
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (t *fakeTransport) live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.subs {
		if !s.isClosed() {
			n++
		}
	}
	return n
}
