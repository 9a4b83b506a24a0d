package config

import (
	"flag"
	"fmt"
	"io"
	"strconv"
)

type optionKind int

const (
	kindString optionKind = iota
	kindInt
	kindBool
)

// option ties a CLI flag to its configuration key.
type option struct {
	flag    string
	key     string
	kind    optionKind
	help    string
	def     string
	secret  bool
	cliOnly bool
}

var options = []option{
	{flag: FlagEventsURL, key: KeyEventsURL, help: "Upstream event stream endpoint", def: DefaultEventsURL},
	{flag: FlagEventName, key: KeyEventName, help: "SSE event name to relay (* for all)", def: DefaultEventName},
	{flag: FlagMode, key: KeyMode, help: "Hosting mode: shared, dedicated or auto", def: DefaultMode},
	{flag: FlagListenAddr, key: KeyListenAddr, help: "HTTP listen address, off disables the server", def: DefaultListenAddr},
	{flag: FlagConsumerBuffer, key: KeyConsumerBuffer, kind: kindInt, help: "Events buffered per consumer before the oldest is dropped", def: strconv.Itoa(DefaultConsumerBuffer)},
	{flag: FlagCodes, key: KeyFilterCodes, help: "Comma separated wiki codes for the console consumer"},
	{flag: FlagLanguages, key: KeyFilterLanguages, help: "Comma separated language codes for the console consumer"},
	{flag: FlagTypes, key: KeyFilterTypes, help: "Comma separated wiki types for the console consumer"},
	{flag: FlagRateWindowCapacity, key: KeyRateWindowCapacity, kind: kindInt, help: "Timestamps kept for the events-per-minute estimate", def: strconv.Itoa(DefaultRateWindowCapacity)},
	{flag: FlagRateHorizonMs, key: KeyRateHorizonMs, kind: kindInt, help: "Rate estimate horizon in milliseconds", def: strconv.Itoa(DefaultRateHorizonMs)},
	{flag: FlagStatusInterval, key: KeyStatusInterval, kind: kindInt, help: "Seconds between status lines, 0 disables", def: strconv.Itoa(DefaultStatusInterval)},
	{flag: FlagConsole, key: KeyConsoleEnabled, kind: kindBool, help: "Attach the console consumer when filters are set", def: strconv.FormatBool(DefaultConsoleEnabled)},
	{flag: FlagLogLevel, key: KeyLogLevel, help: "Log level: trace, debug, info, warn, error", def: DefaultLogLevel},
	{flag: FlagLogFormat, key: KeyLogFormat, help: "Log format: text or json", def: DefaultLogFormat},
	{flag: FlagMirrorRelayURL, key: KeyMirrorRelayURL, help: "Nostr relay to mirror events to"},
	{flag: FlagMirrorSecretKey, key: KeyMirrorSecretKey, help: "Nostr secret key (hex or nsec) for mirrored notes", secret: true},
	{flag: FlagConfigFile, key: KeyConfigFile, help: "Path to a YAML config file"},
	{flag: FlagVersion, kind: kindBool, help: "Print version information and exit", cliOnly: true},
	{flag: FlagHelp, kind: kindBool, help: "Show this help message", cliOnly: true},
}

type cliResult struct {
	source      *FlagSource
	showHelp    bool
	showVersion bool
}

// parseCLIFlags parses args into a FlagSource holding only the flags actually given.
func parseCLIFlags(args []string) (cliResult, error) {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	strs := map[string]*string{}
	ints := map[string]*int{}
	bools := map[string]*bool{}
	for _, o := range options {
		switch o.kind {
		case kindString:
			strs[o.flag] = fs.String(o.flag, "", o.help)
		case kindInt:
			ints[o.flag] = fs.Int(o.flag, 0, o.help)
		case kindBool:
			bools[o.flag] = fs.Bool(o.flag, false, o.help)
		}
	}

	res := cliResult{source: NewFlagSource()}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			res.showHelp = true
			return res, nil
		}
		return res, err
	}

	byFlag := make(map[string]option, len(options))
	for _, o := range options {
		byFlag[o.flag] = o
	}
	fs.Visit(func(f *flag.Flag) {
		o := byFlag[f.Name]
		switch {
		case o.flag == FlagHelp:
			res.showHelp = *bools[o.flag]
		case o.flag == FlagVersion:
			res.showVersion = *bools[o.flag]
		case o.kind == kindString:
			res.source.Set(o.key, *strs[o.flag])
		case o.kind == kindInt:
			res.source.Set(o.key, *ints[o.flag])
		case o.kind == kindBool:
			res.source.Set(o.key, *bools[o.flag])
		}
	})
	return res, nil
}

func (k optionKind) String() string {
	switch k {
	case kindInt:
		return "int"
	case kindBool:
		return ""
	default:
		return "string"
	}
}

// PrintUsage writes the help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "%s - %s\n\n", AppName, AppDescription)
	fmt.Fprintf(w, "%s\n  %s\n\n", HelpUsage, UsageFormat)

	fmt.Fprintf(w, "%s\n", HelpOptions)
	for _, o := range options {
		name := "--" + o.flag
		if t := o.kind.String(); t != "" {
			name += " " + t
		}
		if o.def != "" {
			fmt.Fprintf(w, "  %-34s %s (default: %s)\n", name, o.help, o.def)
		} else {
			fmt.Fprintf(w, "  %-34s %s\n", name, o.help)
		}
	}

	fmt.Fprintf(w, "\n%s\n", HelpEnvironmentVars)
	for _, o := range options {
		if o.cliOnly {
			continue
		}
		desc := o.help
		if o.secret {
			desc += " (keep out of shell history)"
		}
		fmt.Fprintf(w, "  %-34s %s\n", o.key, desc)
	}
	fmt.Fprintf(w, "\n%s\n", HelpNote)
}
