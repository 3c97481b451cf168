package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel       string
	LogFormat      string
	LogFile        string
	DebugBus       bool
	DebugAlarm     bool
	DebugMotion    bool
	DebugTimelapse bool
	DebugGateway   bool
	DebugFrame     bool
	DebugAll       bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info",
		"Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text",
		"Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "",
		"Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "",
		"Log output file path (shorthand)")

	// Debug flags: every component logs through a single *slog.Logger, so
	// these are all aliases for -log-level debug rather than independent
	// per-subsystem switches. Kept separate (instead of collapsing to one
	// -debug flag) so existing invocations and muscle memory keep working.
	fs.BoolVar(&f.DebugBus, "debug-bus", false,
		"Enable debug-level logging (alias for -log-level debug)")
	fs.BoolVar(&f.DebugAlarm, "debug-alarm", false,
		"Enable debug-level logging (alias for -log-level debug)")
	fs.BoolVar(&f.DebugMotion, "debug-motion", false,
		"Enable debug-level logging (alias for -log-level debug)")
	fs.BoolVar(&f.DebugTimelapse, "debug-timelapse", false,
		"Enable debug-level logging (alias for -log-level debug)")
	fs.BoolVar(&f.DebugGateway, "debug-gateway", false,
		"Enable debug-level logging (alias for -log-level debug)")
	fs.BoolVar(&f.DebugFrame, "debug-frame", false,
		"Enable debug-level logging (alias for -log-level debug)")
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable debug-level logging (alias for -log-level debug)")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	cfg.OutputFile = f.LogFile

	if f.anyDebugRequested() {
		cfg.Level = LevelDebug
	}

	return cfg, nil
}

func (f *Flags) anyDebugRequested() bool {
	return f.DebugAll || f.DebugBus || f.DebugAlarm || f.DebugMotion ||
		f.DebugTimelapse || f.DebugGateway || f.DebugFrame
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./securityd

  Enable DEBUG level:
    ./securityd --log-level debug
    ./securityd -l debug

  Log to file:
    ./securityd --log-file securityd.log
    ./securityd -o securityd.log

  JSON format for structured logging:
    ./securityd --log-format json -o securityd.json

  Debug-level logging (all of --debug-* are equivalent aliases):
    ./securityd --debug-alarm
    ./securityd --debug-all -o debug.log

  Production logging (WARN level, JSON to file):
    ./securityd -l warn --log-format json -o production.log
`
	fmt.Println(examples)
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var debugFlags []string
	if f.DebugAll {
		debugFlags = append(debugFlags, "all")
	} else {
		if f.DebugBus {
			debugFlags = append(debugFlags, "bus")
		}
		if f.DebugAlarm {
			debugFlags = append(debugFlags, "alarm")
		}
		if f.DebugMotion {
			debugFlags = append(debugFlags, "motion")
		}
		if f.DebugTimelapse {
			debugFlags = append(debugFlags, "timelapse")
		}
		if f.DebugGateway {
			debugFlags = append(debugFlags, "gateway")
		}
		if f.DebugFrame {
			debugFlags = append(debugFlags, "frame")
		}
	}

	if len(debugFlags) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugFlags, ",")))
	}

	return strings.Join(parts, " ")
}
