package telemetry

import "time"

type TelemetryEvent interface {
	Timestamp() time.Time // When the event occurred
	EventType() string    // For categorization/filtering
}

// Connection states as reported on the bus.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

type ConnectionStateChanged struct {
	timestamp time.Time
	URL       string
	State     string // StateOpen or StateClosed
	Connected bool   // transport acknowledged the subscription
	Reason    string
}

func (e ConnectionStateChanged) Timestamp() time.Time { return e.timestamp }
func (e ConnectionStateChanged) EventType() string    { return "connection_state_changed" }

func NewConnectionStateChanged(url, state string, connected bool, reason string) ConnectionStateChanged {
	return ConnectionStateChanged{
		timestamp: time.Now(),
		URL:       url,
		State:     state,
		Connected: connected,
		Reason:    reason,
	}
}

type EventRelayed struct {
	timestamp time.Time
	Name      string // SSE event name
	Consumers int    // handlers the event was delivered to
}

func (e EventRelayed) Timestamp() time.Time { return e.timestamp }
func (e EventRelayed) EventType() string    { return "event_relayed" }

func NewEventRelayed(name string, consumers int) EventRelayed {
	return EventRelayed{
		timestamp: time.Now(),
		Name:      name,
		Consumers: consumers,
	}
}

type PayloadRejected struct {
	timestamp time.Time
	Err       error
	Excerpt   string
}

func (e PayloadRejected) Timestamp() time.Time { return e.timestamp }
func (e PayloadRejected) EventType() string    { return "payload_rejected" }

func NewPayloadRejected(err error, excerpt string) PayloadRejected {
	return PayloadRejected{
		timestamp: time.Now(),
		Err:       err,
		Excerpt:   excerpt,
	}
}

type TransportFailed struct {
	timestamp time.Time
	Err       error
	URL       string
	Phase     string // dial, status, read
}

func (e TransportFailed) Timestamp() time.Time { return e.timestamp }
func (e TransportFailed) EventType() string    { return "transport_failed" }

func NewTransportFailed(err error, url, phase string) TransportFailed {
	return TransportFailed{
		timestamp: time.Now(),
		Err:       err,
		URL:       url,
		Phase:     phase,
	}
}

type FiltersUpdated struct {
	timestamp  time.Time
	Members    int
	Subscribed bool // false when the filter set was empty
}

func (e FiltersUpdated) Timestamp() time.Time { return e.timestamp }
func (e FiltersUpdated) EventType() string    { return "filters_updated" }

func NewFiltersUpdated(members int, subscribed bool) FiltersUpdated {
	return FiltersUpdated{
		timestamp:  time.Now(),
		Members:    members,
		Subscribed: subscribed,
	}
}

type ConsumerChanged struct {
	timestamp time.Time
	PortID    string
	Attached  bool
	Active    int
}

func (e ConsumerChanged) Timestamp() time.Time { return e.timestamp }
func (e ConsumerChanged) EventType() string    { return "consumer_changed" }

func NewConsumerChanged(portID string, attached bool, active int) ConsumerChanged {
	return ConsumerChanged{
		timestamp: time.Now(),
		PortID:    portID,
		Attached:  attached,
		Active:    active,
	}
}

// RelayError covers failures outside the upstream transport (consumers, mirror).
type RelayError struct {
	timestamp time.Time
	Err       error
	Context   string // e.g. "mirror_publish", "port_write"
	Severity  ErrorSeverity
}

func (e RelayError) Timestamp() time.Time { return e.timestamp }
func (e RelayError) EventType() string    { return "relay_error" }

func NewRelayError(err error, context string, severity ErrorSeverity) RelayError {
	return RelayError{
		timestamp: time.Now(),
		Err:       err,
		Context:   context,
		Severity:  severity,
	}
}

type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

type TelemetryPublisher interface {
	// Publish sends a telemetry event to the aggregator.
	// This is a non-blocking, fire-and-forget call.
	Publish(event TelemetryEvent)
}
