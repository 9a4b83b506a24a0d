package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSSEStreamParsesFields(t *testing.T) {
	input := strings.Join([]string{
		": keep-alive",
		"",
		"event: wiki_event",
		"id: 42",
		"retry: 3000",
		`data: {"title":"A"}`,
		"",
		"data: first",
		"data: second",
		"",
		"event: ignored-without-data",
		"",
		"event:nospace",
		"data:x",
		"",
		"",
	}, "\n")

	s := newSSEStream("test", io.NopCloser(strings.NewReader(input)))

	want := []Message{
		{Event: "wiki_event", ID: "42", Retry: 3000, Data: `{"title":"A"}`},
		{Event: "message", Data: "first\nsecond"},
		{Event: "nospace", Data: "x"},
	}
	for i, w := range want {
		got, err := s.Next()
		if err != nil {
			t.Fatalf("message %d: unexpected error %v", i, err)
		}
		if got != w {
			t.Errorf("message %d: expected %+v, got %+v", i, w, got)
		}
	}

	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestSSEStreamIncompleteTrailingEventIsDropped(t *testing.T) {
	s := newSSEStream("test", io.NopCloser(strings.NewReader("event: wiki_event\ndata: {}")))
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF for unterminated event, got %v", err)
	}
}

func TestSSEStreamCloseIsIdempotent(t *testing.T) {
	s := newSSEStream("test", io.NopCloser(strings.NewReader("")))
	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSSETransportRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non 200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusServiceUnavailable)
			},
		},
		{
			name: "wrong content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte("{}"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewSSETransport(nil, "").Subscribe(context.Background(), srv.URL)
			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("expected TransportError, got %v", err)
			}
			if te.Phase != PhaseStatus {
				t.Errorf("expected phase %q, got %q", PhaseStatus, te.Phase)
			}
		})
	}
}

func TestSSETransportDialError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewSSETransport(nil, "").Subscribe(context.Background(), addr)
	var te *TransportError
	if !errors.As(err, &te) || te.Phase != PhaseDial {
		t.Fatalf("expected dial TransportError, got %v", err)
	}
}

func TestSSETransportSendsHeaders(t *testing.T) {
	seen := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("event: wiki_event\ndata: {\"a\":1}\n\n"))
	}))
	defer srv.Close()

	sub, err := NewSSETransport(nil, "wiki-relay-test").Subscribe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	h := <-seen
	if h.Get("Accept") != "text/event-stream" {
		t.Errorf("expected Accept text/event-stream, got %q", h.Get("Accept"))
	}
	if h.Get("User-Agent") != "wiki-relay-test" {
		t.Errorf("expected user agent to be sent, got %q", h.Get("User-Agent"))
	}

	msg, err := sub.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Event != "wiki_event" || msg.Data != `{"a":1}` {
		t.Errorf("unexpected message %+v", msg)
	}
}
