// Package logging provides structured logging using zerolog.
//
// The action router treats every delivery failure as a background
// diagnostic rather than a caller-visible error, so the log stream is the
// only place cross-window trouble surfaces. Components obtain child
// loggers tagged with their name via Component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide root logger. Components should prefer
// Component over using it directly.
var Logger zerolog.Logger

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to emit, as a string ("debug", "info",
	// "warn", "error"). Unrecognized values fall back to "info".
	Level string
	// Pretty enables human-readable console output instead of JSON.
	Pretty bool
	// Output is where log lines are written. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the configuration used before Init is called.
func DefaultConfig() Config {
	return Config{Level: "info", Pretty: false, Output: os.Stderr}
}

// Init initializes the root logger. Safe to call again to reconfigure.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var out io.Writer = cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel parses a level string (case-insensitive). Unrecognized
// values return InfoLevel so a bad flag never silences the log.
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// SetLevel adjusts the global level gate at runtime. Child loggers
// created by Component observe the change immediately.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// Component returns a child logger tagged with a component name
// ("router", "hub", "wsbridge", ...).
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Debug starts a debug-level log event on the root logger.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info starts an info-level log event on the root logger.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn starts a warn-level log event on the root logger.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error starts an error-level log event on the root logger.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal starts a fatal-level log event; Msg or Send will exit the process.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

func init() {
	Init(DefaultConfig())
}
