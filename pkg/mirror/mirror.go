// Package mirror republishes relayed wiki changes as Nostr text notes.
package mirror

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"wiki-relay/pkg/crypto"
	"wiki-relay/pkg/relay"
	"wiki-relay/pkg/telemetry"

	"github.com/nbd-wtf/go-nostr"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	DefaultQueueSize      = 256
	DefaultPublishTimeout = 10 * time.Second
)

// Relay is the part of *nostr.Relay the mirror needs.
type Relay interface {
	Publish(ctx context.Context, event nostr.Event) error
	Close() error
}

type Config struct {
	QueueSize      int
	PublishTimeout time.Duration
}

// Stats counts what happened to handled events.
type Stats struct {
	Published uint64
	Failed    uint64
	Dropped   uint64
	Skipped   uint64
}

// Mirror is a relay.Handler that signs and publishes a kind 1 note per event.
// Handle never blocks; a full queue drops the event.
type Mirror struct {
	relay     Relay
	keys      *crypto.KeyPair
	cfg       Config
	logger    *log.Entry
	telemetry telemetry.TelemetryPublisher

	queue chan relay.Event
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	skipped   atomic.Uint64
}

// Connect dials a Nostr relay and returns a started mirror publishing to it.
func Connect(ctx context.Context, relayURL, secretKey string, logger *log.Entry, pub telemetry.TelemetryPublisher, cfg Config) (*Mirror, error) {
	keys, err := crypto.DeriveKeyPair(secretKey)
	if err != nil {
		return nil, err
	}
	r, err := nostr.RelayConnect(ctx, relayURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mirror relay %s: %w", relayURL, err)
	}
	m := newMirror(r, keys, logger, pub, cfg)
	m.Start()
	return m, nil
}

// New builds a mirror on an existing relay connection. Call Start before handling events.
func New(r Relay, secretKey string, logger *log.Entry, pub telemetry.TelemetryPublisher, cfg Config) (*Mirror, error) {
	keys, err := crypto.DeriveKeyPair(secretKey)
	if err != nil {
		return nil, err
	}
	return newMirror(r, keys, logger, pub, cfg), nil
}

func newMirror(r Relay, keys *crypto.KeyPair, logger *log.Entry, pub telemetry.TelemetryPublisher, cfg Config) *Mirror {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	if pub == nil {
		pub = telemetry.NewNoopPublisher()
	}
	return &Mirror{
		relay:     r,
		keys:      keys,
		cfg:       cfg,
		logger:    logger.WithFields(log.Fields{"component": "mirror", "pubkey": keys.PublicKeyBech32}),
		telemetry: pub,
		queue:     make(chan relay.Event, cfg.QueueSize),
		quit:      make(chan struct{}),
	}
}

// PublicKey is the npub notes are signed with.
func (m *Mirror) PublicKey() string { return m.keys.PublicKeyBech32 }

func (m *Mirror) Start() {
	m.wg.Add(1)
	go m.run()
}

// Handle enqueues e for publishing. It is safe to register directly with relay.Agent.OnEvent.
func (m *Mirror) Handle(e relay.Event) {
	select {
	case <-m.quit:
		return
	default:
	}
	select {
	case m.queue <- e:
	default:
		if n := m.dropped.Add(1); n == 1 || n%100 == 0 {
			m.logger.WithField("dropped", n).Warn("mirror queue full, dropping events")
		}
	}
}

func (m *Mirror) Stats() Stats {
	return Stats{
		Published: m.published.Load(),
		Failed:    m.failed.Load(),
		Dropped:   m.dropped.Load(),
		Skipped:   m.skipped.Load(),
	}
}

// Close stops the publisher after draining queued events and closes the relay.
func (m *Mirror) Close() error {
	var err error
	m.once.Do(func() {
		close(m.quit)
		m.wg.Wait()
		err = m.relay.Close()
	})
	return err
}

func (m *Mirror) run() {
	defer m.wg.Done()
	for {
		select {
		case e := <-m.queue:
			m.publish(e)
		case <-m.quit:
			for {
				select {
				case e := <-m.queue:
					m.publish(e)
				default:
					return
				}
			}
		}
	}
}

func (m *Mirror) publish(e relay.Event) {
	note, ok := BuildNote(e, m.keys.PublicKeyHex)
	if !ok {
		m.skipped.Add(1)
		return
	}
	if err := note.Sign(m.keys.PrivateKeyHex); err != nil {
		m.fail(fmt.Errorf("failed to sign note: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PublishTimeout)
	defer cancel()
	if err := m.relay.Publish(ctx, note); err != nil {
		m.fail(fmt.Errorf("failed to publish note %s: %w", note.ID, err))
		return
	}
	m.published.Add(1)
	m.logger.WithField("id", note.ID).Debug("mirrored event")
}

func (m *Mirror) fail(err error) {
	m.failed.Add(1)
	m.logger.WithError(err).Warn("mirror publish failed")
	m.telemetry.Publish(telemetry.NewRelayError(err, "mirror_publish", telemetry.ErrorSeverityWarning))
}

// BuildNote turns a wiki change into an unsigned kind 1 note. Events without a title
// are not mirrored.
func BuildNote(e relay.Event, pubkey string) (nostr.Event, bool) {
	if !gjson.ValidBytes(e.Data) {
		return nostr.Event{}, false
	}
	fields := gjson.GetManyBytes(e.Data, "title", "title_url", "code", "change_in_length", "event_type")
	title := strings.TrimSpace(fields[0].String())
	if title == "" {
		return nostr.Event{}, false
	}
	titleURL, code := fields[1].String(), fields[2].String()

	var b strings.Builder
	if code != "" {
		fmt.Fprintf(&b, "[%s] ", code)
	}
	b.WriteString(title)
	if fields[3].Exists() {
		fmt.Fprintf(&b, " (%+d)", fields[3].Int())
	}
	if titleURL != "" {
		b.WriteString("\n")
		b.WriteString(titleURL)
	}

	tags := nostr.Tags{{"t", "wikipedia"}}
	if code != "" {
		tags = append(tags, nostr.Tag{"t", code})
	}
	if kind := fields[4].String(); kind != "" {
		tags = append(tags, nostr.Tag{"t", kind})
	}
	if titleURL != "" {
		tags = append(tags, nostr.Tag{"r", titleURL})
	}

	created := e.Received
	if created.IsZero() {
		created = time.Now()
	}
	return nostr.Event{
		PubKey:    pubkey,
		CreatedAt: nostr.Timestamp(created.Unix()),
		Kind:      nostr.KindTextNote,
		Tags:      tags,
		Content:   b.String(),
	}, true
}
