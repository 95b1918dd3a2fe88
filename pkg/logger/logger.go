package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// LogLevel represents the logging verbosity level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// DebugCategory is a bitmask of the debug-logging categories this
// module's subsystems check independently, so a session can be run with
// (say) gamepad wire-frame logging on without drowning in pipeline
// element-property traffic.
type DebugCategory uint8

const (
	DebugPipeline DebugCategory = 1 << iota
	DebugInput
	DebugGamepad
	DebugCursor
	DebugWebRTC
	DebugWS

	// DebugAll enables every category at once.
	DebugAll = DebugPipeline | DebugInput | DebugGamepad | DebugCursor | DebugWebRTC | DebugWS
)

// Config holds logger configuration. Categories are configured once at
// startup from parsed flags; the mutex guards against the Config being
// shared with a logger already in use by other goroutines, not against
// any expectation of runtime reconfiguration.
type Config struct {
	Level      LogLevel
	Format     OutputFormat
	OutputFile string

	mu         sync.RWMutex
	categories DebugCategory
}

// OutputFormat determines the log output format
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatText OutputFormat = "text"
)

// Global logger instance
var (
	defaultLogger *Logger
	once          sync.Once
)

// Logger wraps slog.Logger with category-based debugging
type Logger struct {
	*slog.Logger
	config *Config
	file   *os.File
}

// NewConfig creates a new logger configuration with defaults
func NewConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		OutputFile: "",
	}
}

// ParseLevel converts a string to LogLevel
func ParseLevel(level string) (LogLevel, error) {
	switch level {
	case "debug", "DEBUG":
		return LevelDebug, nil
	case "info", "INFO":
		return LevelInfo, nil
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn, nil
	case "error", "ERROR":
		return LevelError, nil
	default:
		return "", fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
}

// ParseFormat converts a string to OutputFormat
func ParseFormat(format string) (OutputFormat, error) {
	switch format {
	case "json", "JSON":
		return FormatJSON, nil
	case "text", "TEXT":
		return FormatText, nil
	default:
		return "", fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new Logger instance with the given configuration
func New(cfg *Config) (*Logger, error) {
	var writer io.Writer = os.Stdout
	var file *os.File

	if cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.OutputFile, err)
		}
		writer = f
		file = f
	}

	var handler slog.Handler
	handlerOpts := &slog.HandlerOptions{
		Level: cfg.Level.ToSlogLevel(),
	}

	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, handlerOpts)
	case FormatText:
		handler = slog.NewTextHandler(writer, handlerOpts)
	default:
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	logger := &Logger{
		Logger: slog.New(handler),
		config: cfg,
		file:   file,
	}

	return logger, nil
}

// EnableCategory enables a specific debug category. Enabling DebugAll
// sets every bit at once since it is already the all-categories mask.
func (c *Config) EnableCategory(category DebugCategory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories |= category
}

// IsCategoryEnabled checks if a debug category is enabled
func (c *Config) IsCategoryEnabled(category DebugCategory) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categories&category != 0
}

// IsDebugEnabled checks if any debug category is enabled
func (c *Config) IsDebugEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categories != 0
}

// Close closes the log file if one was opened
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Category-specific logging methods

// DebugPipeline logs media pipeline details if pipeline debugging is enabled
func (l *Logger) DebugPipeline(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugPipeline) {
		args = append([]any{"category", "pipeline"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugInput logs input-router details if input debugging is enabled
func (l *Logger) DebugInput(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugInput) {
		args = append([]any{"category", "input"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugGamepad logs virtual gamepad details if gamepad debugging is enabled
func (l *Logger) DebugGamepad(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugGamepad) {
		args = append([]any{"category", "gamepad"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugCursor logs cursor-monitor details if cursor debugging is enabled
func (l *Logger) DebugCursor(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugCursor) {
		args = append([]any{"category", "cursor"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugWebRTC logs WebRTC session details if WebRTC debugging is enabled
func (l *Logger) DebugWebRTC(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugWebRTC) {
		args = append([]any{"category", "webrtc"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugWS logs WebSocket framing details if ws debugging is enabled
func (l *Logger) DebugWS(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugWS) {
		args = append([]any{"category", "ws"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugPipelineElement logs a pipeline element property change
func (l *Logger) DebugPipelineElement(element, property string, value any) {
	if l.config.IsCategoryEnabled(DebugPipeline) {
		l.Debug("pipeline element property set",
			"category", "pipeline",
			"element", element,
			"property", property,
			"value", value)
	}
}

// DebugInputOp logs a single dispatched input-router operation
func (l *Logger) DebugInputOp(op string, args []string) {
	if l.config.IsCategoryEnabled(DebugInput) {
		l.Debug("input op",
			"category", "input",
			"op", op,
			"args", args)
	}
}

// WithContext adds context values to logger
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		Logger: l.Logger,
		config: l.config,
		file:   l.file,
	}
}

// With returns a new Logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
		file:   l.file,
	}
}

// SetDefault sets the global default logger
func SetDefault(logger *Logger) {
	defaultLogger = logger
	slog.SetDefault(logger.Logger)
}

// Default returns the default logger, creating one if necessary
func Default() *Logger {
	once.Do(func() {
		cfg := NewConfig()
		logger, err := New(cfg)
		if err != nil {
			logger = &Logger{
				Logger: slog.Default(),
				config: cfg,
			}
		}
		defaultLogger = logger
	})
	return defaultLogger
}

// Package-level convenience functions

// Debug logs at Debug level using the default logger
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at Info level using the default logger
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at Warn level using the default logger
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at Error level using the default logger
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
