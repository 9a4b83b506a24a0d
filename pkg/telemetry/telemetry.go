package telemetry

import (
	"context"
	"sync"
	"time"

	"wiki-relay/pkg/ratewindow"
)

// Clock interface allows for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Config for telemetry settings
type Config struct {
	BufferSize         int
	MaxRecentErrors    int
	RateWindowCapacity int
	RateHorizon        time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:         1000,
		MaxRecentErrors:    50,
		RateWindowCapacity: 100,
		RateHorizon:        time.Minute,
	}
}

// Aggregator is the core stateful component that processes telemetry events
type Aggregator struct {
	mu    sync.RWMutex
	clock Clock
	cfg   Config

	// Core counters
	eventsRelayed    uint64
	payloadsRejected uint64
	transportErrors  uint64
	errorsTotal      uint64
	filterUpdates    uint64
	connectionOpens  uint64

	errorsByContext  map[string]uint64
	errorsBySeverity map[ErrorSeverity]uint64

	relayRate *ratewindow.Estimator

	// Current state
	state           string
	connected       bool
	currentURL      string
	activeConsumers int

	// Recent errors (ring buffer)
	recentErrors []string
	errorIndex   int

	// Control channels
	eventCh chan TelemetryEvent
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup

	startTime time.Time
}

// NewAggregator creates a new telemetry aggregator
func NewAggregator(clock Clock, cfg Config) *Aggregator {
	if clock == nil {
		clock = RealClock{}
	}
	def := DefaultConfig()
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.MaxRecentErrors < 1 {
		cfg.MaxRecentErrors = def.MaxRecentErrors
	}
	if cfg.RateWindowCapacity < 1 {
		cfg.RateWindowCapacity = def.RateWindowCapacity
	}
	if cfg.RateHorizon <= 0 {
		cfg.RateHorizon = def.RateHorizon
	}

	// capacity is validated above, so the estimator cannot fail
	est, _ := ratewindow.NewEstimator(cfg.RateWindowCapacity, cfg.RateHorizon, clock)

	return &Aggregator{
		clock:            clock,
		cfg:              cfg,
		state:            StateClosed,
		errorsByContext:  make(map[string]uint64),
		errorsBySeverity: make(map[ErrorSeverity]uint64),
		relayRate:        est,
		recentErrors:     make([]string, cfg.MaxRecentErrors),
		eventCh:          make(chan TelemetryEvent, cfg.BufferSize),
		done:             make(chan struct{}),
		startTime:        clock.Now(),
	}
}

// Start begins processing telemetry events
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.processEvents(ctx)
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	a.stop.Do(func() { close(a.done) })
	a.wg.Wait()
}

// Publish implements TelemetryPublisher interface
func (a *Aggregator) Publish(event TelemetryEvent) {
	select {
	case a.eventCh <- event:
	default:
		// Non-blocking send - drop if channel is full
	}
}

// Snapshot implements TelemetryReader interface
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.clock.Now()

	errorsByContext := make(map[string]uint64, len(a.errorsByContext))
	for k, v := range a.errorsByContext {
		errorsByContext[k] = v
	}
	errorsBySeverity := make(map[ErrorSeverity]uint64, len(a.errorsBySeverity))
	for k, v := range a.errorsBySeverity {
		errorsBySeverity[k] = v
	}

	// newest first
	recentErrors := make([]string, 0)
	for i := 0; i < len(a.recentErrors); i++ {
		idx := (a.errorIndex - i - 1 + len(a.recentErrors)) % len(a.recentErrors)
		if a.recentErrors[idx] != "" {
			recentErrors = append(recentErrors, a.recentErrors[idx])
		}
	}

	return Snapshot{
		EventsRelayed:      a.eventsRelayed,
		PayloadsRejected:   a.payloadsRejected,
		TransportErrors:    a.transportErrors,
		ErrorsTotal:        a.errorsTotal,
		FilterUpdates:      a.filterUpdates,
		ConnectionOpens:    a.connectionOpens,
		State:              a.state,
		Connected:          a.connected,
		CurrentURL:         a.currentURL,
		ActiveConsumers:    a.activeConsumers,
		EventsPerMinute:    a.relayRate.RateAt(now),
		UptimeSeconds:      now.Sub(a.startTime).Seconds(),
		ChannelUtilization: float64(len(a.eventCh)) / float64(cap(a.eventCh)) * 100,
		ErrorsByContext:    errorsByContext,
		ErrorsBySeverity:   errorsBySeverity,
		RecentErrors:       recentErrors,
	}
}

func (a *Aggregator) processEvents(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case event := <-a.eventCh:
			a.handleEvent(event)
		}
	}
}

func (a *Aggregator) handleEvent(event TelemetryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()

	switch e := event.(type) {
	case EventRelayed:
		a.eventsRelayed++
		a.relayRate.Observe(now)

	case ConnectionStateChanged:
		if e.State == StateOpen && e.Connected && !a.connected {
			a.connectionOpens++
		}
		a.state = e.State
		a.connected = e.Connected
		a.currentURL = e.URL
		if e.State == StateClosed {
			a.currentURL = ""
		}

	case FiltersUpdated:
		a.filterUpdates++

	case ConsumerChanged:
		a.activeConsumers = e.Active

	case PayloadRejected:
		a.payloadsRejected++
		a.recordError(e.Err, "payload_decode", ErrorSeverityWarning)

	case TransportFailed:
		a.transportErrors++
		a.recordError(e.Err, "transport_"+e.Phase, ErrorSeverityError)

	case RelayError:
		a.recordError(e.Err, e.Context, e.Severity)
	}
}

func (a *Aggregator) recordError(err error, context string, severity ErrorSeverity) {
	a.errorsTotal++
	a.errorsByContext[context]++
	a.errorsBySeverity[severity]++
	if err != nil {
		a.recentErrors[a.errorIndex] = err.Error()
		a.errorIndex = (a.errorIndex + 1) % len(a.recentErrors)
	}
}
