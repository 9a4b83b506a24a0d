package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"wiki-relay/pkg/filter"
	"wiki-relay/pkg/telemetry"

	log "github.com/sirupsen/logrus"
)

// DefaultEventName is the SSE event name carrying wiki change payloads.
const DefaultEventName = "wiki_event"

const payloadExcerptLen = 120

// Config tunes an Agent.
type Config struct {
	// EventName selects which named events are relayed; "*" relays every event.
	EventName string
}

// Status is a point-in-time view of the agent.
type Status struct {
	State      State
	Connected  bool
	URL        string
	Endpoint   string
	Filters    filter.FilterSet
	Handlers   int
	Generation uint64
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// Agent owns at most one upstream connection and fans its events out to handlers.
// All mutable state is owned by a single loop goroutine; public methods hand work to it.
type Agent struct {
	transport Transport
	logger    *log.Entry
	telemetry telemetry.TelemetryPublisher
	eventName string

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan func()
	inbox  chan connEvent
	quit   chan struct{}
	done   chan struct{}
	stop   sync.Once

	// loop-owned
	state     State
	conn      *connection
	gen       uint64
	connected bool
	endpoint  string
	filters   filter.FilterSet
	handlers  []handlerEntry
	nextID    uint64
}

// NewAgent starts an agent in the Closed state.
func NewAgent(transport Transport, logger *log.Entry, pub telemetry.TelemetryPublisher, cfg Config) *Agent {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	if pub == nil {
		pub = telemetry.NewNoopPublisher()
	}
	if cfg.EventName == "" {
		cfg.EventName = DefaultEventName
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		transport: transport,
		logger:    logger.WithField("component", "relay"),
		telemetry: pub,
		eventName: cfg.EventName,
		ctx:       ctx,
		cancel:    cancel,
		cmds:      make(chan func()),
		inbox:     make(chan connEvent),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     Closed,
	}
	go a.loop()
	return a
}

// UpdateFilters replaces the upstream subscription. Any open connection is closed and
// fully quiesced first; a new one is opened only if filters is non-empty. An invalid
// endpoint is returned as an error with the agent left Closed. Lifecycle problems of the
// new connection are reported asynchronously, never returned here.
func (a *Agent) UpdateFilters(endpointBase string, filters filter.FilterSet) error {
	filters = filters.Normalized()

	var opErr error
	err := a.do(func() {
		a.closeConnection("filters_updated")
		a.endpoint = endpointBase
		a.filters = filters
		if filters.IsEmpty() {
			a.telemetry.Publish(telemetry.NewFiltersUpdated(0, false))
			a.logger.Info("not opening event stream because no wiki codes, types, or languages were selected")
			return
		}
		rawURL, encErr := filters.Encode(endpointBase)
		if encErr != nil {
			a.telemetry.Publish(telemetry.NewFiltersUpdated(filters.Size(), false))
			a.logger.WithError(encErr).Warn("not opening event stream, endpoint is invalid")
			opErr = encErr
			return
		}
		a.telemetry.Publish(telemetry.NewFiltersUpdated(filters.Size(), true))
		opErr = a.openConnection(rawURL)
	})
	if err != nil {
		return err
	}
	return opErr
}

// OnEvent registers h for every subsequent event. The returned func unregisters it.
func (a *Agent) OnEvent(h Handler) (unsubscribe func()) {
	var id uint64
	if err := a.do(func() {
		a.nextID++
		id = a.nextID
		a.handlers = append(a.handlers, handlerEntry{id: id, fn: h})
	}); err != nil {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = a.do(func() {
				for i, e := range a.handlers {
					if e.id == id {
						a.handlers = append(a.handlers[:i:i], a.handlers[i+1:]...)
						return
					}
				}
			})
		})
	}
}

// State returns the connection state; Closed once the agent is stopped.
func (a *Agent) State() State {
	return a.Status().State
}

// Status returns a snapshot of the agent.
func (a *Agent) Status() Status {
	var s Status
	if err := a.do(func() {
		s = Status{
			State:      a.state,
			Connected:  a.connected,
			Endpoint:   a.endpoint,
			Filters:    a.filters,
			Handlers:   len(a.handlers),
			Generation: a.gen,
		}
		if a.conn != nil {
			s.URL = a.conn.url
		}
	}); err != nil {
		return Status{State: Closed}
	}
	return s
}

// Close stops the agent and its connection. It is safe to call more than once.
func (a *Agent) Close() error {
	a.stop.Do(func() { close(a.quit) })
	<-a.done
	return nil
}

// do runs fn on the loop goroutine and waits for it.
func (a *Agent) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case a.cmds <- func() { defer close(finished); fn() }:
	case <-a.done:
		return ErrAgentClosed
	}
	<-finished
	return nil
}

func (a *Agent) loop() {
	defer close(a.done)
	defer a.cancel()

	for {
		select {
		case fn := <-a.cmds:
			fn()
		case ev := <-a.inbox:
			a.handleConnEvent(ev)
		case <-a.quit:
			a.closeConnection("agent_closed")
			a.handlers = nil
			a.logger.Debug("relay agent stopped")
			return
		}
	}
}

func (a *Agent) transition(to State, reason string) error {
	if !canTransition(a.state, to) {
		return fmt.Errorf("invalid relay state transition %s -> %s (%s)", a.state, to, reason)
	}
	a.state = to
	return nil
}

// openConnection is only legal from Closed.
func (a *Agent) openConnection(rawURL string) error {
	if err := a.transition(Open, "open"); err != nil {
		return err
	}
	a.gen++
	a.conn = openConnection(a.ctx, a.gen, rawURL, a.transport, a.inbox)
	a.connected = false
	a.logger.WithField("url", rawURL).Info("creating event stream")
	a.telemetry.Publish(telemetry.NewConnectionStateChanged(rawURL, telemetry.StateOpen, false, "subscribe"))
	return nil
}

// closeConnection is idempotent: closing an absent connection does nothing.
func (a *Agent) closeConnection(reason string) {
	if a.conn == nil {
		return
	}
	c := a.conn
	a.conn = nil
	a.connected = false
	// the transition cannot fail: a live handle implies Open
	_ = a.transition(Closed, reason)
	c.close()
	a.logger.WithFields(log.Fields{"url": c.url, "reason": reason}).Info("closed event stream connection")
	a.telemetry.Publish(telemetry.NewConnectionStateChanged(c.url, telemetry.StateClosed, false, reason))
}

func (a *Agent) handleConnEvent(ev connEvent) {
	if a.conn == nil || ev.gen != a.conn.gen {
		// left over from a connection that has already been replaced
		return
	}

	switch ev.kind {
	case connOpened:
		a.connected = true
		a.logger.WithField("url", a.conn.url).Info("event stream started")
		a.telemetry.Publish(telemetry.NewConnectionStateChanged(a.conn.url, telemetry.StateOpen, true, "transport_open"))

	case connMessage:
		a.deliver(ev.msg)

	case connFailed:
		phase := PhaseRead
		if te, ok := ev.err.(*TransportError); ok {
			phase = te.Phase
		}
		a.logger.WithError(ev.err).WithField("url", a.conn.url).Error("error from event stream")
		a.telemetry.Publish(telemetry.NewTransportFailed(ev.err, a.conn.url, phase))
		a.closeConnection("transport_error")

	case connEnded:
		a.logger.WithField("url", a.conn.url).Warn("event stream closed by remote")
		a.closeConnection("remote_close")
	}
}

func (a *Agent) deliver(msg Message) {
	if a.eventName != "*" && msg.Event != a.eventName {
		a.logger.WithField("event", msg.Event).Debug("ignoring unrelated stream event")
		return
	}

	var data json.RawMessage
	if err := json.Unmarshal([]byte(msg.Data), &data); err != nil {
		perr := &MalformedPayloadError{Excerpt: excerpt(msg.Data, payloadExcerptLen), Err: err}
		a.logger.WithError(perr).Warn("dropping malformed event payload")
		a.telemetry.Publish(telemetry.NewPayloadRejected(perr, perr.Excerpt))
		return
	}

	ev := Event{Name: msg.Event, ID: msg.ID, Data: data, Received: time.Now()}
	for _, h := range a.handlers {
		a.invoke(h, ev)
	}
	a.telemetry.Publish(telemetry.NewEventRelayed(msg.Event, len(a.handlers)))
}

func (a *Agent) invoke(h handlerEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithField("handler", h.id).Errorf("event handler panicked: %v", r)
			a.telemetry.Publish(telemetry.NewRelayError(fmt.Errorf("handler %d panicked: %v", h.id, r), "handler_panic", telemetry.ErrorSeverityError))
		}
	}()
	h.fn(ev)
}
