// Package logging sets up the process-wide structured logger and exposes
// the two thread-safe log helpers the core is allowed to consume, keeping
// logging itself out of the core's lock-ordering discipline.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the logger's level and output format.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// New builds a zerolog.Logger per Config. Format "console" renders
// human-readable output for local development; anything else is JSON.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).With().Timestamp().Str("service", "broker").Logger()
}

// LogInfo logs an informational event with structured fields. Safe for
// concurrent use: zerolog serializes writes to its underlying writer.
func LogInfo(logger *zerolog.Logger, event string, fields map[string]any) {
	ev := logger.Info()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(event)
}

// LogError logs err with structured fields. Safe for concurrent use.
func LogError(logger *zerolog.Logger, err error, event string, fields map[string]any) {
	ev := logger.Error().Err(err)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(event)
}
