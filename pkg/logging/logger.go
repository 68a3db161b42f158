// Package logging configures the connector's zerolog output.
//
// Every line carries service=shopify-connector; loggers from NewLogger add
// a component field. Request scoped events use the keys shop, resource,
// status, error_class, available, wait, backoff and attempt. 429s, rejected
// tokens and partial pagination are logged at warn; store and config
// failures at error.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is stamped on every log line.
const ServiceName = "shopify-connector"

// LogLevel is a LOG_LEVEL value.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Setup installs the global logger and returns it.
// An unknown level falls back to info and is reported once.
func Setup(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	level, known := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
	log.Logger = logger

	if !known {
		logger.Warn().Str("log_level", string(cfg.Level)).Msg("Unknown log level, using info")
	}
	return logger
}

// parseLevel maps a LOG_LEVEL value to a zerolog level. Empty means info.
func parseLevel(level LogLevel) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel, true
	case "", "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	default:
		return zerolog.InfoLevel, false
	}
}

// NewLogger derives a logger for one component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
