package config

import (
	"os"
	"time"

	"wiki-relay/pkg/filter"
)

type Config struct {
	EventsURL      string
	EventName      string
	Mode           string
	ListenAddr     string
	ConsumerBuffer int
	Filters        filter.FilterSet
	Rate           RateConfig
	Console        ConsoleConfig
	Log            LogConfig
	Mirror         MirrorConfig
	ConfigFile     string
}

type RateConfig struct {
	WindowCapacity int
	HorizonMs      int
}

func (r RateConfig) Horizon() time.Duration {
	return time.Duration(r.HorizonMs) * time.Millisecond
}

type ConsoleConfig struct {
	Enabled               bool
	StatusIntervalSeconds int
}

type LogConfig struct {
	Level  string
	Format string
}

type MirrorConfig struct {
	RelayURL  string
	SecretKey string
}

// Enabled reports whether both a relay and a key were configured.
func (m MirrorConfig) Enabled() bool {
	return m.RelayURL != "" && m.SecretKey != ""
}

// Result is what Load returns. Config is nil when help or version was requested.
type Result struct {
	Config      *Config
	ShowHelp    bool
	ShowVersion bool
}

// Load loads configuration from os.Args.
func Load() (Result, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs resolves configuration with precedence:
// CLI flags > environment variables > config file > defaults.
func LoadArgs(args []string) (Result, error) {
	cli, err := parseCLIFlags(args)
	if err != nil {
		return Result{}, err
	}
	if cli.showHelp || cli.showVersion {
		return Result{ShowHelp: cli.showHelp, ShowVersion: cli.showVersion}, nil
	}

	// the config file location itself cannot come from the file
	head := NewConfigResolver(cli.source, &EnvSource{})
	configFile := head.ResolveString(KeyConfigFile, "")
	file, err := NewFileSource(configFile)
	if err != nil {
		return Result{}, err
	}

	resolver := NewConfigResolver(cli.source, &EnvSource{}, file)
	cfg := &Config{
		EventsURL:      resolver.ResolveString(KeyEventsURL, DefaultEventsURL),
		EventName:      resolver.ResolveString(KeyEventName, DefaultEventName),
		Mode:           resolver.ResolveString(KeyMode, DefaultMode),
		ListenAddr:     resolver.ResolveString(KeyListenAddr, DefaultListenAddr),
		ConsumerBuffer: resolver.ResolveInt(KeyConsumerBuffer, DefaultConsumerBuffer),
		Filters: filter.New(
			resolver.ResolveList(KeyFilterCodes),
			resolver.ResolveList(KeyFilterLanguages),
			resolver.ResolveList(KeyFilterTypes),
		),
		Rate: RateConfig{
			WindowCapacity: resolver.ResolveInt(KeyRateWindowCapacity, DefaultRateWindowCapacity),
			HorizonMs:      resolver.ResolveInt(KeyRateHorizonMs, DefaultRateHorizonMs),
		},
		Console: ConsoleConfig{
			Enabled:               resolver.ResolveBool(KeyConsoleEnabled, DefaultConsoleEnabled),
			StatusIntervalSeconds: resolver.ResolveInt(KeyStatusInterval, DefaultStatusInterval),
		},
		Log: LogConfig{
			Level:  resolver.ResolveString(KeyLogLevel, DefaultLogLevel),
			Format: resolver.ResolveString(KeyLogFormat, DefaultLogFormat),
		},
		Mirror: MirrorConfig{
			RelayURL:  resolver.ResolveString(KeyMirrorRelayURL, ""),
			SecretKey: resolver.ResolveString(KeyMirrorSecretKey, ""),
		},
		ConfigFile: file.Used(),
	}

	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	return Result{Config: cfg}, nil
}
