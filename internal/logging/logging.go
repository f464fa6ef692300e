// Package logging builds the zerolog.Logger the bus daemon and its
// components log through, following the same shape as the teacher's
// monitoring package: structured JSON by default, an optional pretty
// console writer, timestamp and caller fields, and helpers for logging
// recovered panics with a stack trace.
package logging

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the logger New builds.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to info
	// on an unrecognized value.
	Level string
	// Format is "json" or "pretty". Anything else is treated as "json".
	Format string
}

// New builds a zerolog.Logger with a "component" field set to component,
// timestamps and caller info attached — matching the teacher's
// monitoring.NewLogger, generalized to take the field name the bus
// actually wants ("bus", "callback_client", ...) rather than a single
// hardcoded service name.
func New(config Config, component string) zerolog.Logger {
	var output io.Writer = os.Stdout

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Format == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("component", component).
		Logger()
}

// LogPanic logs a recovered panic with a stack trace and the fields
// given, for use in a defer/recover block around a goroutine the bus
// itself spawns (not a user callback — see client.CallbackClient for
// that path, which uses its own logger directly).
func LogPanic(logger zerolog.Logger, panicValue any, msg string, fields map[string]any) {
	event := logger.Error().
		Interface("panic_value", panicValue).
		Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
