// Package log configures the process-wide structured logger.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured by Init.
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Level names accepted by Init and the service config file.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Config controls how Init builds the global logger.
type Config struct {
	Level  string
	Output io.Writer
}

// Init replaces the global logger. Call once during process startup, before
// any component logs. Output defaults to stderr; format is auto-detected
// (console when stderr is a tty, JSON otherwise - a bus-activated daemon
// usually has neither, so JSON is the common case).
func Init(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if f, ok := output.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	Logger = zerolog.New(output).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case InfoLevel, "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
