// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger from a level and format name and returns
// it. Format "text" writes a console-friendly stream, anything else JSON.
func Init(level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if strings.EqualFold(format, "text") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Nop returns a disabled logger for tests.
func Nop() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}
