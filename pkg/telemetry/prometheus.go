package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "wikirelay"

// PrometheusPublisher mirrors telemetry events into prometheus collectors.
type PrometheusPublisher struct {
	eventsRelayed    prometheus.Counter
	payloadsRejected prometheus.Counter
	transportErrors  *prometheus.CounterVec
	relayErrors      *prometheus.CounterVec
	filterUpdates    *prometheus.CounterVec
	connectionOpen   prometheus.Gauge
	consumers        prometheus.Gauge
}

// NewPrometheusPublisher registers its collectors on reg. Pass a fresh registry in tests.
func NewPrometheusPublisher(reg prometheus.Registerer) (*PrometheusPublisher, error) {
	p := &PrometheusPublisher{
		eventsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "events_relayed_total",
			Help:      "The total number of upstream events delivered to local consumers",
		}),
		payloadsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "payloads_rejected_total",
			Help:      "The total number of upstream messages dropped as malformed JSON",
		}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "transport_errors_total",
			Help:      "The total number of upstream transport failures",
		}, []string{"phase"}),
		relayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "errors_total",
			Help:      "The total number of non-transport relay errors",
		}, []string{"context"}),
		filterUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "filter_updates_total",
			Help:      "The total number of filter updates, by whether they opened a subscription",
		}, []string{"subscribed"}),
		connectionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "connection_open",
			Help:      "1 while an upstream subscription is open",
		}),
		consumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "host",
			Name:      "consumers_active",
			Help:      "The number of attached local consumers",
		}),
	}

	for _, c := range []prometheus.Collector{
		p.eventsRelayed, p.payloadsRejected, p.transportErrors, p.relayErrors,
		p.filterUpdates, p.connectionOpen, p.consumers,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PrometheusPublisher) Publish(event TelemetryEvent) {
	switch e := event.(type) {
	case EventRelayed:
		p.eventsRelayed.Inc()
	case PayloadRejected:
		p.payloadsRejected.Inc()
	case TransportFailed:
		p.transportErrors.WithLabelValues(e.Phase).Inc()
	case RelayError:
		p.relayErrors.WithLabelValues(e.Context).Inc()
	case FiltersUpdated:
		if e.Subscribed {
			p.filterUpdates.WithLabelValues("true").Inc()
		} else {
			p.filterUpdates.WithLabelValues("false").Inc()
		}
	case ConnectionStateChanged:
		if e.State == StateOpen {
			p.connectionOpen.Set(1)
		} else {
			p.connectionOpen.Set(0)
		}
	case ConsumerChanged:
		p.consumers.Set(float64(e.Active))
	}
}
