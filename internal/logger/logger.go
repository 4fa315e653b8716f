package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns the process logger. Development gets console output at
// debug level, everything else JSON at info. LOG_LEVEL overrides the
// level either way.
func New(appEnv string) zerolog.Logger {
	env := strings.ToLower(strings.TrimSpace(appEnv))

	var log zerolog.Logger
	if env == "development" || env == "dev" {
		cw := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stdout
			w.TimeFormat = "2006-01-02 15:04:05"
		})
		log = zerolog.New(cw).Level(zerolog.DebugLevel)
	} else {
		log = zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	}

	if lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil && lvl != zerolog.NoLevel {
		log = log.Level(lvl)
	}
	return log.With().Timestamp().Logger()
}

// Component tags a logger with the slice it serves, so log lines from
// the limiter, the schedulers and the auth path can be told apart.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Nop returns a disabled logger, useful for tests.
func Nop() zerolog.Logger {
	return zerolog.New(io.Discard)
}
