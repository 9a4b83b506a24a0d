package main

import (
	"context"
	"time"

	"wiki-relay/pkg/config"
	"wiki-relay/pkg/host"
	"wiki-relay/pkg/ratewindow"
	"wiki-relay/pkg/relay"
	"wiki-relay/pkg/telemetry"
	"wiki-relay/pkg/utils"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// CLI is the local console consumer: it reads one port, feeds a rate estimator and
// logs periodic status lines.
type CLI struct {
	telemetry telemetry.TelemetryReader
	config    *config.Config
	logger    *log.Entry
	estimator *ratewindow.Estimator
	forward   []relay.Handler

	// State
	received     uint64
	lastSnapshot telemetry.Snapshot
	printed      bool
}

func NewCLI(reader telemetry.TelemetryReader, cfg *config.Config, logger *log.Entry, est *ratewindow.Estimator) *CLI {
	return &CLI{
		telemetry: reader,
		config:    cfg,
		logger:    logger.WithField("component", "console"),
		estimator: est,
	}
}

// Forward passes every consumed event on to h as well. Call before Run.
func (c *CLI) Forward(h relay.Handler) {
	c.forward = append(c.forward, h)
}

// Run consumes port until ctx is done or the port is closed, then closes the port.
func (c *CLI) Run(ctx context.Context, port host.Port) {
	defer port.Close()

	c.logger.WithFields(log.Fields{
		"port":    port.ID(),
		"filters": c.config.Filters.String(),
	}).Info("console consumer attached")

	var tick <-chan time.Time
	if s := c.config.Console.StatusIntervalSeconds; s > 0 {
		ticker := time.NewTicker(time.Duration(s) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-port.Events():
			if !ok {
				return
			}
			c.consume(e)
		case <-tick:
			c.printStatus(port.Dropped())
		}
	}
}

func (c *CLI) consume(e relay.Event) {
	c.received++
	c.estimator.Observe(e.Received)
	for _, h := range c.forward {
		h(e)
	}
	if c.logger.Logger.IsLevelEnabled(log.DebugLevel) {
		fields := gjson.GetManyBytes(e.Data, "code", "event_type", "title")
		c.logger.WithFields(log.Fields{
			"code": fields[0].String(),
			"type": fields[1].String(),
		}).Debug(fields[2].String())
	}
}

// printStatus logs the local rate alongside the relay-wide telemetry.
func (c *CLI) printStatus(dropped uint64) {
	snapshot := c.telemetry.Snapshot()

	if c.shouldPrintStatus(snapshot) {
		entry := c.logger.WithFields(log.Fields{
			"received":     utils.FormatNumber(c.received),
			"relayed":      utils.FormatNumber(snapshot.EventsRelayed),
			"rate_per_min": utils.FormatRate(c.estimator.Rate()),
			"rejected":     snapshot.PayloadsRejected,
			"dropped":      dropped,
			"state":        snapshot.State,
			"connected":    snapshot.Connected,
		})
		entry.Info("status")

		if snapshot.ErrorsTotal > c.lastSnapshot.ErrorsTotal {
			for _, kc := range utils.SortByCount(snapshot.ErrorsByContext) {
				c.logger.WithField("count", kc.Count).Warnf("errors in %s", kc.Key)
			}
		}
	}

	c.lastSnapshot = snapshot
	c.printed = true
}

// shouldPrintStatus determines if we should print a status update
func (c *CLI) shouldPrintStatus(snapshot telemetry.Snapshot) bool {
	// Always print first status
	if !c.printed {
		return true
	}

	// Print while events flow
	if snapshot.EventsRelayed != c.lastSnapshot.EventsRelayed {
		return true
	}

	if snapshot.ErrorsTotal > c.lastSnapshot.ErrorsTotal {
		return true
	}

	if snapshot.Connected != c.lastSnapshot.Connected || snapshot.State != c.lastSnapshot.State {
		return true
	}

	return false
}
