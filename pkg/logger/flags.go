package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel      string
	LogFormat     string
	LogFile       string
	DebugPipeline bool
	DebugInput    bool
	DebugGamepad  bool
	DebugCursor   bool
	DebugWebRTC   bool
	DebugWS       bool
	DebugAll      bool
}

// categoryFlag associates one debug category with the CLI flag name, its
// usage text, and the Flags field the parsed value lands in. Table-driven
// so registration, config translation, and string rendering share one
// list instead of repeating a per-category block three times.
type categoryFlag struct {
	category DebugCategory
	name     string
	usage    string
	enabled  *bool
}

func (f *Flags) categoryFlags() []categoryFlag {
	return []categoryFlag{
		{DebugPipeline, "pipeline", "media pipeline debugging (element properties, state changes)", &f.DebugPipeline},
		{DebugInput, "input", "input router debugging (keyboard, mouse, wire protocol ops)", &f.DebugInput},
		{DebugGamepad, "gamepad", "virtual gamepad debugging (config/event frames)", &f.DebugGamepad},
		{DebugCursor, "cursor", "cursor monitor debugging (serials, PNG cache)", &f.DebugCursor},
		{DebugWebRTC, "webrtc", "WebRTC debugging (ICE, SDP, connection state)", &f.DebugWebRTC},
		{DebugWS, "ws", "WebSocket framing debugging", &f.DebugWS},
	}
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

	for _, cf := range f.categoryFlags() {
		fs.BoolVar(cf.enabled, "debug-"+cf.name, false, "Enable "+cf.usage)
	}
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable all debug categories")

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

	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		cfg.Level = LevelDebug
	} else {
		for _, cf := range f.categoryFlags() {
			if *cf.enabled {
				cfg.EnableCategory(cf.category)
				cfg.Level = LevelDebug
			}
		}
	}

	return cfg, nil
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./selkies-core

  Enable DEBUG level:
    ./selkies-core --log-level debug
    ./selkies-core -l debug

  Log to file:
    ./selkies-core --log-file core.log
    ./selkies-core -o core.log

  JSON format for structured logging:
    ./selkies-core --log-format json -o core.json

  Debug the media pipeline only:
    ./selkies-core --debug-pipeline

  Debug the input router only:
    ./selkies-core --debug-input

  Debug multiple categories:
    ./selkies-core --debug-pipeline --debug-webrtc --debug-gamepad

  Debug everything:
    ./selkies-core --debug-all -o debug.log

  Production logging (WARN level, JSON to file):
    ./selkies-core -l warn --log-format json -o production.log
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

	var debugCategories []string
	if f.DebugAll {
		debugCategories = append(debugCategories, "all")
	} else {
		for _, cf := range f.categoryFlags() {
			if *cf.enabled {
				debugCategories = append(debugCategories, cf.name)
			}
		}
	}

	if len(debugCategories) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugCategories, ",")))
	}

	return strings.Join(parts, " ")
}
