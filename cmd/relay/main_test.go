package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wiki-relay/pkg/config"
	"wiki-relay/pkg/filter"
	"wiki-relay/pkg/host"
	"wiki-relay/pkg/ratewindow"
	"wiki-relay/pkg/relay"
	"wiki-relay/pkg/telemetry"
	"wiki-relay/pkg/testutil"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{
		config.KeyEventsURL, config.KeyEventName, config.KeyMode, config.KeyListenAddr,
		config.KeyFilterCodes, config.KeyFilterLanguages, config.KeyFilterTypes,
		config.KeyRateWindowCapacity, config.KeyRateHorizonMs, config.KeyMirrorRelayURL,
		config.KeyMirrorSecretKey, config.KeyConfigFile, config.KeyLogLevel, config.KeyLogFormat,
	} {
		t.Setenv(k, "")
	}
}

func quietEntry() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

func TestRunVersion(t *testing.T) {
	isolateEnv(t)
	var out bytes.Buffer
	if code := run([]string{"--version"}, &out, io.Discard); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out.String(), "relay version") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestRunHelp(t *testing.T) {
	isolateEnv(t)
	var out bytes.Buffer
	if code := run([]string{"--help"}, &out, io.Discard); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out.String(), config.KeyEventsURL) {
		t.Errorf("expected usage output, got %q", out.String())
	}
}

func TestRunInvalidConfig(t *testing.T) {
	isolateEnv(t)
	var errOut bytes.Buffer
	if code := run([]string{"--mode", "cluster"}, io.Discard, &errOut); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "Error loading configuration") {
		t.Errorf("expected configuration error, got %q", errOut.String())
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info must be filtered at warn level")
	}
	var line map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil || line["msg"] != "shown" {
		t.Errorf("expected json log line, got %q", out)
	}
}

func testConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	isolateEnv(t)
	res, err := config.LoadArgs(args)
	if err != nil {
		t.Fatal(err)
	}
	return res.Config
}

func TestRouter(t *testing.T) {
	cfg := testConfig(t, "--mode", "shared")
	a, err := newApp(cfg, quietEntry())
	if err != nil {
		t.Fatal(err)
	}
	defer a.host.Close()

	srv := httptest.NewServer(a.router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/stream_status")
	if err != nil {
		t.Fatal(err)
	}
	var st streamStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if st.StreamConnected || st.ActiveSubscribers != 0 || st.State != "closed" || st.Mode != "shared" {
		t.Errorf("unexpected status %+v", st)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected runtime metrics to be exposed")
	}
}

func getStatus(t *testing.T, baseURL string) streamStatus {
	t.Helper()
	resp, err := http.Get(baseURL + "/api/stream_status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st streamStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	return st
}

func dialRelay(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/relay", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRouterDedicatedWebsocketGetsOwnUpstream(t *testing.T) {
	upstream := testutil.NewSSEServer()
	defer upstream.Close()

	cfg := testConfig(t, "--mode", "dedicated", "--events-url", upstream.URL)
	a, err := newApp(cfg, quietEntry())
	if err != nil {
		t.Fatal(err)
	}
	defer a.host.Close()

	srv := httptest.NewServer(a.router())
	defer srv.Close()

	en := dialRelay(t, srv.URL)
	if err := en.WriteJSON(host.FilterCommand{Codes: []string{"enwiki"}}); err != nil {
		t.Fatal(err)
	}
	enStream, ok := upstream.Next(2 * time.Second)
	if !ok || enStream.Query.Get("codes") != "enwiki" {
		t.Fatalf("expected an enwiki upstream, got %v", enStream)
	}

	de := dialRelay(t, srv.URL)
	if err := de.WriteJSON(host.FilterCommand{Codes: []string{"dewiki"}}); err != nil {
		t.Fatal(err)
	}
	deStream, ok := upstream.Next(2 * time.Second)
	if !ok || deStream.Query.Get("codes") != "dewiki" {
		t.Fatalf("expected a dewiki upstream, got %v", deStream)
	}

	if !enStream.Send(relay.DefaultEventName, `{"wiki":"en"}`) || !deStream.Send(relay.DefaultEventName, `{"wiki":"de"}`) {
		t.Fatal("send failed")
	}
	for conn, want := range map[*websocket.Conn]string{en: `{"wiki":"en"}`, de: `{"wiki":"de"}`} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(msg) != want {
			t.Errorf("expected %s, got %s", want, msg)
		}
	}

	if upstream.Active() != 2 {
		t.Errorf("expected 2 upstream streams, got %d", upstream.Active())
	}
	st := getStatus(t, srv.URL)
	if st.Mode != host.ModeDedicated || st.ActiveSubscribers != 2 || st.State != "open" || !st.StreamConnected {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestRunConsumesWithConsole(t *testing.T) {
	upstream := testutil.NewSSEServer()
	defer upstream.Close()

	cfg := testConfig(t, "--events-url", upstream.URL, "--codes", "enwiki", "--listen-addr", "off", "--status-interval-seconds", "0")
	a, err := newApp(cfg, quietEntry())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	st, ok := upstream.Next(2 * time.Second)
	if !ok {
		t.Fatal("console consumer did not subscribe")
	}
	if st.Query.Get("codes") != "enwiki" {
		t.Errorf("unexpected upstream query %v", st.Query)
	}
	st.Send(relay.DefaultEventName, `{"title":"A"}`)

	deadline := time.Now().Add(2 * time.Second)
	for a.aggregator.Snapshot().EventsRelayed == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if a.aggregator.Snapshot().EventsRelayed != 1 {
		t.Error("expected the event to be relayed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected run error %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop")
	}
}

type staticReader struct{ snap telemetry.Snapshot }

func (s *staticReader) Snapshot() telemetry.Snapshot { return s.snap }

type fakePort struct {
	events chan relay.Event
	closed bool
}

func (p *fakePort) ID() string                                   { return "fake" }
func (p *fakePort) UpdateFilters(string, filter.FilterSet) error { return nil }
func (p *fakePort) Events() <-chan relay.Event                   { return p.events }
func (p *fakePort) Dropped() uint64                              { return 0 }

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestCLIConsumesAndForwards(t *testing.T) {
	cfg := testConfig(t, "--codes", "enwiki")
	est, _ := ratewindow.NewEstimator(10, time.Minute, ratewindow.RealClock{})
	cli := NewCLI(&staticReader{}, cfg, quietEntry(), est)

	var forwarded int
	cli.Forward(func(relay.Event) { forwarded++ })

	port := &fakePort{events: make(chan relay.Event, 3)}
	now := time.Now()
	for i := 0; i < 3; i++ {
		port.events <- relay.Event{Data: []byte(`{}`), Received: now}
	}
	close(port.events)

	cli.Run(context.Background(), port)

	if forwarded != 3 || cli.received != 3 {
		t.Errorf("expected 3 forwarded and received, got %d/%d", forwarded, cli.received)
	}
	if est.Len() != 3 {
		t.Errorf("expected estimator to hold 3 timestamps, got %d", est.Len())
	}
	if !port.closed {
		t.Error("expected port to be closed when Run returns")
	}
}

func TestShouldPrintStatus(t *testing.T) {
	cli := &CLI{}
	if !cli.shouldPrintStatus(telemetry.Snapshot{}) {
		t.Error("first status must always print")
	}
	cli.printed = true
	cli.lastSnapshot = telemetry.Snapshot{EventsRelayed: 5, State: "open", Connected: true}

	tests := []struct {
		name string
		snap telemetry.Snapshot
		want bool
	}{
		{"unchanged", telemetry.Snapshot{EventsRelayed: 5, State: "open", Connected: true}, false},
		{"new events", telemetry.Snapshot{EventsRelayed: 6, State: "open", Connected: true}, true},
		{"new errors", telemetry.Snapshot{EventsRelayed: 5, ErrorsTotal: 1, State: "open", Connected: true}, true},
		{"disconnected", telemetry.Snapshot{EventsRelayed: 5, State: "closed"}, true},
	}
	for _, tt := range tests {
		if got := cli.shouldPrintStatus(tt.snap); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}
