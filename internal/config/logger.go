package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the station logger from the logging section. An unknown
// level falls back to info.
func (l LoggingConfig) NewLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if l.Format == "text" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(l.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
