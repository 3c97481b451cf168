package logger_test

import (
	"fmt"
	"os"

	"github.com/agocontrol/security/pkg/logger"
)

// Example showing basic logger usage
func ExampleLogger_basic() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatText

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	log.Info("application started", "version", "1.0.0")
	log.Warn("deprecated command used", "command", "oldconfig")
	log.Error("failed to persist securitymap", "error", "disk full")
}

// Example showing debug-level logging, as produced by any --debug-* flag
func ExampleLogger_debug() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelDebug

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	log.Debug("countdown tick", "zone", "perimeter", "delay", 5)
	log.Debug("dispatching alert", "kind", "smsgateway", "uuid", "G1")
}

// Example showing command-line flags integration
func ExampleFlags() {
	// In main.go:
	// import (
	//     "flag"
	//     "github.com/agocontrol/security/pkg/logger"
	// )
	//
	// fs := flag.NewFlagSet("securityd", flag.ExitOnError)
	// logFlags := logger.RegisterFlags(fs)
	// fs.Parse(os.Args[1:])
	//
	// logConfig, _ := logFlags.ToConfig()
	// log, _ := logger.New(logConfig)
	// defer log.Close()

	fmt.Println("See cmd/securityd/main.go for complete example")
}

// Example showing JSON format output
func ExampleLogger_json() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatJSON
	cfg.OutputFile = "app.json"

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()
	defer os.Remove("app.json")

	log.Info("housemode changed",
		"housemode", "night",
		"zone_count", 3)

	// Output will be in JSON format:
	// {"time":"...","level":"INFO","msg":"housemode changed","housemode":"night","zone_count":3}
}

// Example showing debug logging suppressed at the default Info level
func ExampleLogger_conditional() {
	cfg := logger.NewConfig()

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// slog's own level check makes this a no-op unless cfg.Level is Debug.
	log.Debug("motion detected", "changes", 812, "sensitivity", 50)
}
