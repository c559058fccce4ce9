// Package logging configures the zerolog logger shared by the harvester.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every log line.
const ServiceName = "inspire-names"

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
// Loggers created with NewLogger afterwards inherit its output and fields.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()

	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to zerolog.Level, defaulting to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRun returns a child logger tagged with a harvest run ID.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// ContextWithRun returns a copy of ctx carrying a logger tagged with runID.
// Loggers obtained through FromContext on it inherit the tag.
func ContextWithRun(ctx context.Context, runID string) context.Context {
	logger := WithRun(log.Logger, runID)
	return logger.WithContext(ctx)
}

// FromContext returns the logger for component. When ctx carries a run
// logger its fields are kept, otherwise it behaves like NewLogger.
func FromContext(ctx context.Context, component string) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l.With().Str("component", component).Logger()
	}
	return NewLogger(component)
}

// Log Level Guidelines:
//
// Debug: per-request detail
//   - Request URLs, cache hits, pacing waits
//   - Incomplete identity records (first few only)
//
// Info: run progress
//   - Fetch start, per-page progress, fetch complete
//   - Mapping built, file written
//
// Warn: recoverable conditions
//   - Transport errors and retries on the same offset
//   - Cache errors (the request goes to INSPIRE instead)
//   - Page limit reached
//
// Error: the run aborts
//   - Retries exhausted, malformed MARCXML, write failures
//
// Context Fields:
//   - component: inspire-client, fetcher, mapper, writer, harvest
//   - run_id: harvest run identifier
//   - offset, page_size, page_records, total_records
//   - attempt, backoff, error_class, status
//   - path, entries
