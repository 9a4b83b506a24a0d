package telemetry

type Snapshot struct {
	// Core counters
	EventsRelayed    uint64
	PayloadsRejected uint64
	TransportErrors  uint64
	ErrorsTotal      uint64
	FilterUpdates    uint64
	ConnectionOpens  uint64

	// Connection status
	State      string
	Connected  bool
	CurrentURL string

	// Consumers
	ActiveConsumers int

	// Rate metrics
	EventsPerMinute float64

	// System metrics
	UptimeSeconds      float64
	ChannelUtilization float64

	// Error breakdown
	ErrorsByContext  map[string]uint64
	ErrorsBySeverity map[ErrorSeverity]uint64
	RecentErrors     []string
}

type TelemetryReader interface {
	Snapshot() Snapshot
}
