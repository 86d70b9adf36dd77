// Package logging provides structured logging for Postsack's importer,
// storage, and analytics goroutines.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the package's logger.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Pretty enables human-readable console output instead of JSON.
	Pretty bool
	// Output is the destination writer; defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration for CLI use.
func DefaultConfig() Config {
	return Config{Level: "info", Pretty: true, Output: os.Stderr}
}

// Logger wraps zerolog.Logger with Postsack component helpers.
type Logger struct {
	zerolog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}
	zl := zerolog.New(output).With().Timestamp().Logger().Level(parseLevel(cfg.Level))
	return Logger{zl}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component returns a Logger tagged with a "component" field, matching the
// teacher's per-subsystem logger convention (internal/live, internal/adapters).
func (l Logger) Component(name string) Logger {
	return Logger{l.With().Str("component", name).Logger()}
}

var std = New(DefaultConfig())

// SetDefault replaces the package-level default logger.
func SetDefault(l Logger) { std = l }

// Default returns the package-level default logger.
func Default() Logger { return std }
