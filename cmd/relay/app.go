package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wiki-relay/pkg/config"
	"wiki-relay/pkg/host"
	"wiki-relay/pkg/mirror"
	"wiki-relay/pkg/ratewindow"
	"wiki-relay/pkg/relay"
	"wiki-relay/pkg/telemetry"
	"wiki-relay/pkg/version"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type app struct {
	cfg        *config.Config
	logger     *log.Entry
	registry   *prometheus.Registry
	aggregator *telemetry.Aggregator
	telemetry  telemetry.TelemetryPublisher
	host       host.Host
}

func newApp(cfg *config.Config, logger *log.Entry) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := telemetry.NewPrometheusPublisher(reg)
	if err != nil {
		return nil, err
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.RateWindowCapacity = cfg.Rate.WindowCapacity
	tcfg.RateHorizon = cfg.Rate.Horizon()
	agg := telemetry.NewAggregator(telemetry.RealClock{}, tcfg)
	pub := telemetry.MultiPublisher{agg, prom}

	transport := relay.NewSSETransport(nil, version.UserAgent())
	factory := func() *relay.Agent {
		return relay.NewAgent(transport, logger, pub, relay.Config{EventName: cfg.EventName})
	}

	h, err := host.Select(cfg.Mode, host.Capability{SharedListener: cfg.ListenAddr != ""}, factory,
		host.Options{QueueSize: cfg.ConsumerBuffer, Telemetry: pub})
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{"mode": h.Mode(), "upstream": cfg.EventsURL}).Info("relay host selected")

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		aggregator: agg,
		telemetry:  pub,
		host:       h,
	}, nil
}

// Run blocks until ctx is cancelled or the HTTP server fails.
func (a *app) Run(ctx context.Context) error {
	a.aggregator.Start(ctx)
	defer a.aggregator.Stop()
	defer a.host.Close()

	var m *mirror.Mirror
	if a.cfg.Mirror.Enabled() {
		var err error
		m, err = mirror.Connect(ctx, a.cfg.Mirror.RelayURL, a.cfg.Mirror.SecretKey, a.logger, a.telemetry, mirror.Config{})
		if err != nil {
			return err
		}
		defer m.Close()
		a.logger.WithField("npub", m.PublicKey()).Info("mirroring events to nostr")
	}

	if !a.cfg.Filters.IsEmpty() && (a.cfg.Console.Enabled || m != nil) {
		if err := a.startConsumer(ctx, m); err != nil {
			return err
		}
	}

	if a.cfg.ListenAddr == "" {
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", a.cfg.ListenAddr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown; host.Close ends them
	return srv.Shutdown(shutdownCtx)
}

func (a *app) startConsumer(ctx context.Context, m *mirror.Mirror) error {
	port, err := a.host.Attach()
	if err != nil {
		return err
	}
	if err := port.UpdateFilters(a.cfg.EventsURL, a.cfg.Filters); err != nil {
		port.Close()
		return err
	}

	est, err := ratewindow.NewEstimator(a.cfg.Rate.WindowCapacity, a.cfg.Rate.Horizon(), ratewindow.RealClock{})
	if err != nil {
		port.Close()
		return err
	}
	cli := NewCLI(a.aggregator, a.cfg, a.logger, est)
	if m != nil {
		cli.Forward(m.Handle)
	}
	go cli.Run(ctx, port)
	return nil
}

func (a *app) router() chi.Router {
	rtr := chi.NewRouter()
	rtr.Use(middleware.Recoverer)

	rtr.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	rtr.Get("/api/stream_status", a.streamStatus)
	rtr.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	ws := host.NewWSHandler(a.host, a.cfg.EventsURL, a.logger)
	rtr.Mount("/relay", ws.Router())
	return rtr
}

type streamStatus struct {
	StreamConnected   bool    `json:"stream_connected"`
	ActiveSubscribers int     `json:"active_subscribers"`
	State             string  `json:"state"`
	Mode              string  `json:"mode"`
	EventsPerMinute   float64 `json:"events_per_minute"`
}

func (a *app) streamStatus(w http.ResponseWriter, r *http.Request) {
	snap := a.aggregator.Snapshot()
	st := streamStatus{
		StreamConnected:   snap.Connected,
		ActiveSubscribers: a.host.Consumers(),
		State:             snap.State,
		Mode:              a.host.Mode(),
		EventsPerMinute:   snap.EventsPerMinute,
	}
	// agents are authoritative; the aggregator only holds the last transition it saw
	switch h := a.host.(type) {
	case *host.SharedHost:
		s := h.Agent().Status()
		st.StreamConnected = s.Connected
		st.State = s.State.String()
	case *host.DedicatedHost:
		st.StreamConnected = false
		st.State = relay.Closed.String()
		for _, s := range h.Statuses() {
			if s.Connected {
				st.StreamConnected = true
			}
			if s.State == relay.Open {
				st.State = relay.Open.String()
			}
		}
	}
	if st.State == "" {
		st.State = relay.Closed.String()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		a.logger.WithError(err).Debug("failed to write stream status")
	}
}
