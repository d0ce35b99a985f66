package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// NewLogger builds a JSON logger on stdout tagged with the component name.
// The level comes from COVER_LOG_LEVEL (zerolog level names), defaulting
// to info when unset or unparseable.
func NewLogger(component string) zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := os.Getenv("COVER_LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	return NewLoggerWithLevel(component, level)
}

// NewLoggerWithLevel builds a component logger at a fixed level.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
