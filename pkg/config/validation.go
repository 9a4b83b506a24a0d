package config

import (
	"fmt"
	"net/url"
	"strings"

	"wiki-relay/pkg/crypto"
	"wiki-relay/pkg/host"

	log "github.com/sirupsen/logrus"
)

func (c *Config) validate() error {
	u, err := url.Parse(c.EventsURL)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", KeyEventsURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", KeyEventsURL, c.EventsURL)
	}
	if strings.TrimSpace(c.EventName) == "" {
		return fmt.Errorf("%s must not be empty", KeyEventName)
	}

	if strings.EqualFold(strings.TrimSpace(c.ListenAddr), "off") {
		c.ListenAddr = ""
	}

	mode, err := host.ParseMode(c.Mode)
	if err != nil {
		return fmt.Errorf("%s: %w", KeyMode, err)
	}
	c.Mode = mode

	if c.ConsumerBuffer < 1 {
		return fmt.Errorf("%s must be positive, got %d", KeyConsumerBuffer, c.ConsumerBuffer)
	}
	if c.Rate.WindowCapacity < 1 {
		return fmt.Errorf("%s must be positive, got %d", KeyRateWindowCapacity, c.Rate.WindowCapacity)
	}
	if c.Rate.HorizonMs < 1 {
		return fmt.Errorf("%s must be positive, got %d", KeyRateHorizonMs, c.Rate.HorizonMs)
	}
	if c.Console.StatusIntervalSeconds < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyStatusInterval, c.Console.StatusIntervalSeconds)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, c.Log.Format)
	}

	if (c.Mirror.RelayURL == "") != (c.Mirror.SecretKey == "") {
		return fmt.Errorf("%s and %s must be set together", KeyMirrorRelayURL, KeyMirrorSecretKey)
	}
	if c.Mirror.SecretKey != "" {
		if _, err := crypto.ParseSecretKey(c.Mirror.SecretKey); err != nil {
			return fmt.Errorf("%s: %w", KeyMirrorSecretKey, err)
		}
	}
	return nil
}
