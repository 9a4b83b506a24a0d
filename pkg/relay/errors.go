package relay

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrAgentClosed is returned by operations on an agent after Close.
var ErrAgentClosed = errors.New("relay agent closed")

// Transport failure phases.
const (
	PhaseDial   = "dial"
	PhaseStatus = "status"
	PhaseRead   = "read"
)

// TransportError reports an upstream connection failure. The connection is closed when
// one is observed and stays closed until the next filter update.
type TransportError struct {
	URL   string
	Phase string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s error for %s: %v", e.Phase, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedPayloadError reports a message whose data is not valid JSON. The message is
// dropped; the connection is unaffected.
type MalformedPayloadError struct {
	Excerpt string
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload %q: %v", e.Excerpt, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
