package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"wiki-relay/pkg/config"
	"wiki-relay/pkg/version"

	log "github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	res, err := config.LoadArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		fmt.Fprintf(stderr, "Run with --%s for usage.\n", config.FlagHelp)
		return 1
	}
	if res.ShowHelp {
		config.PrintUsage(stdout)
		return 0
	}
	if res.ShowVersion {
		fmt.Fprintln(stdout, version.Info().String())
		return 0
	}
	cfg := res.Config

	logger := newLogger(cfg.Log, stderr)
	entry := logger.WithField("version", version.Version)
	if cfg.ConfigFile != "" {
		entry.WithField("file", cfg.ConfigFile).Info("using config file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, entry)
	if err != nil {
		entry.WithError(err).Error("failed to start")
		return 1
	}
	if err := a.Run(ctx); err != nil {
		entry.WithError(err).Error("relay stopped with error")
		return 1
	}
	return 0
}

// newLogger builds the process logger; cfg has already been validated.
func newLogger(cfg config.LogConfig, out io.Writer) *log.Logger {
	l := log.New()
	l.SetOutput(out)
	if level, err := log.ParseLevel(cfg.Level); err == nil {
		l.SetLevel(level)
	}
	if cfg.Format == "json" {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return l
}
