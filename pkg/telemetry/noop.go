package telemetry

// NoopPublisher is a telemetry publisher that does nothing
// Useful for testing or when telemetry is disabled
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-op telemetry publisher
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish does nothing
func (n *NoopPublisher) Publish(event TelemetryEvent) {}

// MultiPublisher fans one event out to several publishers.
type MultiPublisher []TelemetryPublisher

func (m MultiPublisher) Publish(event TelemetryEvent) {
	for _, p := range m {
		if p != nil {
			p.Publish(event)
		}
	}
}
