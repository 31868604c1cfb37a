// Package logging wires the repo's structured logger. Grounded in
// aristath-sentinel's zerolog usage: a single console-writer logger built
// once at startup and threaded through every component via
// zerolog.Logger.With().Str("component", ...).
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the base logger for the process. level is one of
// "debug"/"info"/"warn"/"error"; unrecognized values fall back to info.
func New(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the given component name,
// matching the "component" field convention used throughout the rest of
// this repo's structured log events.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
