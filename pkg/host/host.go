package host

import (
	"errors"
	"fmt"
	"strings"

	"wiki-relay/pkg/filter"
	"wiki-relay/pkg/relay"
	"wiki-relay/pkg/telemetry"
)

// Hosting modes.
const (
	ModeShared    = "shared"
	ModeDedicated = "dedicated"
	ModeAuto      = "auto"
)

var ErrHostClosed = errors.New("host closed")

// Port is what a consumer sees. It behaves the same whatever mode the host runs in.
type Port interface {
	ID() string
	UpdateFilters(endpointBase string, filters filter.FilterSet) error
	// Events is closed after Close.
	Events() <-chan relay.Event
	// Dropped counts events evicted because the consumer fell behind.
	Dropped() uint64
	Close() error
}

// Host attaches consumers to relay agents.
type Host interface {
	Attach() (Port, error)
	Mode() string
	Consumers() int
	Close() error
}

// AgentFactory builds a fresh relay agent.
type AgentFactory func() *relay.Agent

// Capability describes what the runtime offers when picking a mode.
type Capability struct {
	// SharedListener is true when consumers can reach a shared process (e.g. a websocket
	// listener is configured).
	SharedListener bool
}

// Options tunes both host kinds.
type Options struct {
	QueueSize int
	Telemetry telemetry.TelemetryPublisher
}

func (o Options) publisher() telemetry.TelemetryPublisher {
	if o.Telemetry == nil {
		return telemetry.NewNoopPublisher()
	}
	return o.Telemetry
}

// ParseMode validates a configured mode string.
func ParseMode(s string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case ModeShared, ModeDedicated, ModeAuto:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown host mode %q (want %s, %s or %s)", s, ModeShared, ModeDedicated, ModeAuto)
	}
}

// Select picks the host once at startup. The choice is never revisited.
func Select(mode string, capability Capability, factory AgentFactory, opts Options) (Host, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if m == ModeAuto {
		m = ModeDedicated
		if capability.SharedListener {
			m = ModeShared
		}
	}
	if m == ModeShared {
		return NewSharedHost(factory(), opts), nil
	}
	return NewDedicatedHost(factory, opts), nil
}
