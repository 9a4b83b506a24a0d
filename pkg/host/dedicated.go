package host

import (
	"sync"

	"wiki-relay/pkg/filter"
	"wiki-relay/pkg/relay"
	"wiki-relay/pkg/telemetry"

	"github.com/google/uuid"
)

// DedicatedHost gives every port its own agent and upstream connection.
type DedicatedHost struct {
	factory   AgentFactory
	opts      Options
	telemetry telemetry.TelemetryPublisher

	mu     sync.Mutex
	ports  map[string]*dedicatedPort
	closed bool
}

func NewDedicatedHost(factory AgentFactory, opts Options) *DedicatedHost {
	return &DedicatedHost{
		factory:   factory,
		opts:      opts,
		telemetry: opts.publisher(),
		ports:     make(map[string]*dedicatedPort),
	}
}

func (h *DedicatedHost) Mode() string { return ModeDedicated }

func (h *DedicatedHost) Attach() (Port, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHostClosed
	}

	p := &dedicatedPort{
		id:    uuid.NewString(),
		host:  h,
		agent: h.factory(),
		queue: newEvictingQueue(h.opts.QueueSize),
	}
	p.agent.OnEvent(func(e relay.Event) { p.queue.push(e) })
	h.ports[p.id] = p
	h.telemetry.Publish(telemetry.NewConsumerChanged(p.id, true, len(h.ports)))
	return p, nil
}

func (h *DedicatedHost) Consumers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ports)
}

// Statuses reports the agent of every attached port.
func (h *DedicatedHost) Statuses() []relay.Status {
	h.mu.Lock()
	agents := make([]*relay.Agent, 0, len(h.ports))
	for _, p := range h.ports {
		agents = append(agents, p.agent)
	}
	h.mu.Unlock()

	out := make([]relay.Status, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Status())
	}
	return out
}

func (h *DedicatedHost) Close() error {
	h.mu.Lock()
	h.closed = true
	ports := make([]*dedicatedPort, 0, len(h.ports))
	for _, p := range h.ports {
		ports = append(ports, p)
	}
	h.mu.Unlock()

	for _, p := range ports {
		p.Close()
	}
	return nil
}

func (h *DedicatedHost) detach(id string) {
	h.mu.Lock()
	delete(h.ports, id)
	n := len(h.ports)
	h.mu.Unlock()
	h.telemetry.Publish(telemetry.NewConsumerChanged(id, false, n))
}

type dedicatedPort struct {
	id    string
	host  *DedicatedHost
	agent *relay.Agent
	queue *evictingQueue
	once  sync.Once
}

func (p *dedicatedPort) ID() string { return p.id }

func (p *dedicatedPort) UpdateFilters(endpointBase string, filters filter.FilterSet) error {
	return p.agent.UpdateFilters(endpointBase, filters)
}

func (p *dedicatedPort) Events() <-chan relay.Event { return p.queue.ch }

func (p *dedicatedPort) Dropped() uint64 { return p.queue.dropped.Load() }

func (p *dedicatedPort) Close() error {
	p.once.Do(func() {
		// the agent loop is the only writer; once it has stopped the queue can close
		p.agent.Close()
		p.queue.close()
		p.host.detach(p.id)
	})
	return nil
}
