package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SSEServer is an httptest server speaking text/event-stream. Each request becomes a
// Stream that the test drives explicitly.
type SSEServer struct {
	*httptest.Server

	streams chan *Stream
	closed  chan struct{}
	once    sync.Once
	active  atomic.Int32

	mu      sync.Mutex
	queries []url.Values

	// Status overrides the response code when non-zero.
	Status int
}

// Stream is one server-side subscription.
type Stream struct {
	Query url.Values

	w       http.ResponseWriter
	flusher http.Flusher
	frames  chan string
	gone    chan struct{}
	end     chan struct{}
	endOnce sync.Once
}

func NewSSEServer() *SSEServer {
	s := &SSEServer{
		streams: make(chan *Stream, 16),
		closed:  make(chan struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *SSEServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.queries = append(s.queries, r.URL.Query())
	status := s.Status
	s.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	st := &Stream{
		Query:   r.URL.Query(),
		w:       w,
		flusher: flusher,
		frames:  make(chan string),
		gone:    make(chan struct{}),
		end:     make(chan struct{}),
	}
	s.active.Add(1)
	defer s.active.Add(-1)
	defer close(st.gone)

	select {
	case s.streams <- st:
	case <-s.closed:
		return
	}

	for {
		select {
		case frame := <-st.frames:
			fmt.Fprint(w, frame)
			flusher.Flush()
		case <-st.end:
			return
		case <-r.Context().Done():
			return
		case <-s.closed:
			return
		}
	}
}

// Next waits for the next subscription to arrive.
func (s *SSEServer) Next(timeout time.Duration) (*Stream, bool) {
	select {
	case st := <-s.streams:
		return st, true
	case <-time.After(timeout):
		return nil, false
	}
}

// Active is the number of streams currently being served.
func (s *SSEServer) Active() int { return int(s.active.Load()) }

// Queries returns the query of every request received so far.
func (s *SSEServer) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.queries))
	copy(out, s.queries)
	return out
}

func (s *SSEServer) Close() {
	s.once.Do(func() { close(s.closed) })
	s.Server.CloseClientConnections()
	s.Server.Close()
}

// Send writes one named event. It reports false once the client went away.
func (st *Stream) Send(event, data string) bool {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return st.Raw(b.String())
}

// Raw writes frame verbatim.
func (st *Stream) Raw(frame string) bool {
	select {
	case st.frames <- frame:
		return true
	case <-st.gone:
		return false
	case <-time.After(2 * time.Second):
		return false
	}
}

// End closes the stream from the server side.
func (st *Stream) End() {
	st.endOnce.Do(func() { close(st.end) })
}

// Gone is closed once the handler for this stream has returned.
func (st *Stream) Gone() <-chan struct{} { return st.gone }
