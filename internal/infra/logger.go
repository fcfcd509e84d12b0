package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so the rest of the service depends on a
// stable name instead of the third-party module.
type Logger = zerolog.Logger

// NewLogger builds the process-wide logger. Development gets a human
// console writer at debug level; everything else emits JSON at info.
func NewLogger(appEnv string) Logger {
	out := io.Writer(os.Stdout)
	level := zerolog.InfoLevel
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "ageme").
		Logger()
}
