package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases the zerolog.Logger so packages depend on infra rather than
// the third-party module directly.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development gets debug level and a
// console writer; everything else logs JSON at info level.
func NewLogger(appEnv string) Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// OrDiscard returns l, or a logger that drops everything when l is nil.
func OrDiscard(l *Logger) *Logger {
	if l != nil {
		return l
	}
	discard := zerolog.New(io.Discard)
	return &discard
}

// Component derives a child logger tagged with the component name.
func Component(l *Logger, name string) *Logger {
	child := OrDiscard(l).With().Str("component", name).Logger()
	return &child
}
