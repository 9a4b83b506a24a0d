package config

// Configuration key constants. Environment variables use these names directly; config
// files use the lower-case form (e.g. relay_events_url).
const (
	// Upstream
	KeyEventsURL = "RELAY_EVENTS_URL"
	KeyEventName = "RELAY_EVENT_NAME"

	// Hosting
	KeyMode           = "RELAY_MODE"
	KeyListenAddr     = "RELAY_LISTEN_ADDR"
	KeyConsumerBuffer = "RELAY_CONSUMER_BUFFER"

	// Initial filters for the console consumer
	KeyFilterCodes     = "FILTER_CODES"
	KeyFilterLanguages = "FILTER_LANGUAGES"
	KeyFilterTypes     = "FILTER_TYPES"

	// Rate estimation
	KeyRateWindowCapacity = "RATE_WINDOW_CAPACITY"
	KeyRateHorizonMs      = "RATE_HORIZON_MS"
	KeyStatusInterval     = "STATUS_INTERVAL_SECONDS"
	KeyConsoleEnabled     = "CONSOLE_ENABLED"

	// Logging
	KeyLogLevel  = "LOG_LEVEL"
	KeyLogFormat = "LOG_FORMAT"

	// Nostr mirror
	KeyMirrorRelayURL  = "MIRROR_RELAY_URL"
	KeyMirrorSecretKey = "MIRROR_SECRET_KEY"

	KeyConfigFile = "CONFIG_FILE"
)

// Default values for configuration
const (
	DefaultEventsURL          = "http://localhost:8000/api/events/"
	DefaultEventName          = "wiki_event"
	DefaultMode               = "auto"
	DefaultListenAddr         = ":8080"
	DefaultConsumerBuffer     = 100
	DefaultRateWindowCapacity = 100
	DefaultRateHorizonMs      = 60000
	DefaultStatusInterval     = 5
	DefaultConsoleEnabled     = true
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// CLI flag names
const (
	FlagEventsURL          = "events-url"
	FlagEventName          = "event-name"
	FlagMode               = "mode"
	FlagListenAddr         = "listen-addr"
	FlagConsumerBuffer     = "consumer-buffer"
	FlagCodes              = "codes"
	FlagLanguages          = "languages"
	FlagTypes              = "types"
	FlagRateWindowCapacity = "rate-window-capacity"
	FlagRateHorizonMs      = "rate-horizon-ms"
	FlagStatusInterval     = "status-interval-seconds"
	FlagConsole            = "console"
	FlagLogLevel           = "log-level"
	FlagLogFormat          = "log-format"
	FlagMirrorRelayURL     = "mirror-relay-url"
	FlagMirrorSecretKey    = "mirror-secret-key"
	FlagConfigFile         = "config"
	FlagVersion            = "version"
	FlagHelp               = "help"
)

// Help message constants
const (
	AppName        = "wiki-relay"
	AppDescription = "Relay filtered wiki recent-change events to local consumers"
	UsageFormat    = "relay [OPTIONS]"

	HelpOptions         = "Options:"
	HelpEnvironmentVars = "Environment Variables:"
	HelpUsage           = "Usage:"
	HelpNote            = "Note: CLI options override environment variables, which override the config file"
)
