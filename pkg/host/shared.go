package host

import (
	"sync"

	"wiki-relay/pkg/filter"
	"wiki-relay/pkg/relay"
	"wiki-relay/pkg/telemetry"

	"github.com/google/uuid"
)

// SharedHost multiplexes every port onto one agent. Filter updates from any port apply
// to the single upstream connection; the most recent one wins. When the last port
// detaches the upstream connection is closed.
type SharedHost struct {
	agent     *relay.Agent
	opts      Options
	telemetry telemetry.TelemetryPublisher

	mu     sync.Mutex
	ports  map[string]*sharedPort
	closed bool
}

func NewSharedHost(agent *relay.Agent, opts Options) *SharedHost {
	return &SharedHost{
		agent:     agent,
		opts:      opts,
		telemetry: opts.publisher(),
		ports:     make(map[string]*sharedPort),
	}
}

func (h *SharedHost) Mode() string { return ModeShared }

// Agent exposes the shared agent for status reporting.
func (h *SharedHost) Agent() *relay.Agent { return h.agent }

func (h *SharedHost) Attach() (Port, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHostClosed
	}

	p := &sharedPort{
		id:    uuid.NewString(),
		host:  h,
		queue: newEvictingQueue(h.opts.QueueSize),
	}
	p.unsubscribe = h.agent.OnEvent(func(e relay.Event) { p.queue.push(e) })
	h.ports[p.id] = p
	h.telemetry.Publish(telemetry.NewConsumerChanged(p.id, true, len(h.ports)))
	return p, nil
}

func (h *SharedHost) Consumers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ports)
}

func (h *SharedHost) Close() error {
	h.mu.Lock()
	h.closed = true
	ports := make([]*sharedPort, 0, len(h.ports))
	for _, p := range h.ports {
		ports = append(ports, p)
	}
	h.mu.Unlock()

	for _, p := range ports {
		p.Close()
	}
	return h.agent.Close()
}

func (h *SharedHost) detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.ports, id)
	n := len(h.ports)

	h.telemetry.Publish(telemetry.NewConsumerChanged(id, false, n))
	if n == 0 && !h.closed {
		// nobody is listening; drop the upstream connection until filters arrive again.
		// Held under mu so a port attaching meanwhile sets its filters after this.
		_ = h.agent.UpdateFilters("", filter.FilterSet{})
	}
}

type sharedPort struct {
	id          string
	host        *SharedHost
	queue       *evictingQueue
	unsubscribe func()
	once        sync.Once
}

func (p *sharedPort) ID() string { return p.id }

func (p *sharedPort) UpdateFilters(endpointBase string, filters filter.FilterSet) error {
	return p.host.agent.UpdateFilters(endpointBase, filters)
}

func (p *sharedPort) Events() <-chan relay.Event { return p.queue.ch }

func (p *sharedPort) Dropped() uint64 { return p.queue.dropped.Load() }

func (p *sharedPort) Close() error {
	p.once.Do(func() {
		// unsubscribe runs on the agent loop, so no handler call is in flight after it
		p.unsubscribe()
		p.queue.close()
		p.host.detach(p.id)
	})
	return nil
}
