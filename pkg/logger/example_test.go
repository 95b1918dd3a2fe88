package logger_test

import (
	"fmt"
	"os"

	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
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

	log.Info("session started", "session_id", "abc123")
	log.Warn("client sent unknown control op", "op", "zz")
	log.Error("pipeline construction failed", "error", "missing element factory")
}

// Example showing debug category usage
func ExampleLogger_categories() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelDebug
	cfg.EnableCategory(logger.DebugPipeline)
	cfg.EnableCategory(logger.DebugInput)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	log.DebugPipelineElement("x264enc", "bitrate", 4000)
	log.DebugInputOp("m", []string{"512", "384"})

	log.DebugPipeline("pipeline transitioned to playing")
	log.DebugInput("router dispatched op", "op", "kd")
}

// Example showing command-line flags integration
func ExampleFlags() {
	// In main.go:
	// import (
	//     "flag"
	//     "github.com/selkies-project/selkies-streamer-core/pkg/logger"
	// )
	//
	// fs := flag.NewFlagSet("selkies-core", flag.ExitOnError)
	// logFlags := logger.RegisterFlags(fs)
	// fs.Parse(os.Args[1:])
	//
	// logConfig, _ := logFlags.ToConfig()
	// log, _ := logger.New(logConfig)
	// defer log.Close()

	fmt.Println("See cmd/selkies-core/main.go for complete example")
}

// Example showing JSON format output
func ExampleLogger_json() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatJSON
	cfg.OutputFile = "session.json"

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()
	defer os.Remove("session.json")

	log.Info("client connected",
		"remote_addr", "192.168.1.50",
		"transport", "webrtc")

	// Output will be in JSON format:
	// {"time":"...","level":"INFO","msg":"client connected","remote_addr":"192.168.1.50","transport":"webrtc"}
}

// Example showing conditional debug logging
func ExampleLogger_conditional() {
	cfg := logger.NewConfig()
	cfg.EnableCategory(logger.DebugGamepad)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// Category methods automatically check if enabled.
	// No manual check needed - zero cost if disabled.
	log.DebugGamepad("config frame written", "pad_index", 0)
	log.DebugInput("dispatch skipped, category disabled")
}
