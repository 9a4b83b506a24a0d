package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

const (
	sseDefaultEvent = "message"
	maxLineBytes    = 1 << 20
)

// SSETransport subscribes to text/event-stream endpoints over HTTP.
type SSETransport struct {
	Client    *http.Client
	UserAgent string
}

// NewSSETransport returns a transport using client, or a client without timeout when nil.
// Streaming responses are long-lived, so the client must not carry a total timeout.
func NewSSETransport(client *http.Client, userAgent string) *SSETransport {
	if client == nil {
		client = &http.Client{}
	}
	return &SSETransport{Client: client, UserAgent: userAgent}
}

func (t *SSETransport) Subscribe(ctx context.Context, rawURL string) (Subscription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Phase: PhaseDial, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Phase: PhaseDial, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &TransportError{URL: rawURL, Phase: PhaseStatus, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		resp.Body.Close()
		return nil, &TransportError{URL: rawURL, Phase: PhaseStatus, Err: fmt.Errorf("unexpected content type %q", mediaType)}
	}

	return newSSEStream(rawURL, resp.Body), nil
}

// sseStream parses the event stream format: events are blocks of "field: value" lines
// terminated by a blank line; lines starting with ':' are comments.
type sseStream struct {
	url     string
	body    io.ReadCloser
	scanner *bufio.Scanner
	once    sync.Once
}

func newSSEStream(url string, body io.ReadCloser) *sseStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &sseStream{url: url, body: body, scanner: sc}
}

func (s *sseStream) Next() (Message, error) {
	var (
		msg     Message
		data    strings.Builder
		hasData bool
	)
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if !hasData {
				// blank line without data resets the pending event
				msg = Message{}
				continue
			}
			if msg.Event == "" {
				msg.Event = sseDefaultEvent
			}
			msg.Data = data.String()
			return msg, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			msg.Event = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			msg.ID = value
		case "retry":
			if n, err := strconv.Atoi(value); err == nil {
				msg.Retry = n
			}
		}
	}
	if err := s.scanner.Err(); err != nil {
		return Message{}, &TransportError{URL: s.url, Phase: PhaseRead, Err: err}
	}
	return Message{}, io.EOF
}

func (s *sseStream) Close() error {
	var err error
	s.once.Do(func() { err = s.body.Close() })
	return err
}
