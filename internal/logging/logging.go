// Package logging configures the zerolog logger shared across the engine.
// JSON output for production, console output for development; components
// scope their loggers with a "component" field.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string
	// Format is the output format: json or console.
	Format string
	// Output is the writer for log output. Defaults to os.Stderr.
	Output io.Writer
}

// New builds a configured root logger.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, used by tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
