package logging

import (
	"io"

	"github.com/rs/zerolog"
)

// NewComponentLogger returns a zerolog logger for the database and influx
// managers. It writes plain console lines to w tagged with component.
func NewComponentLogger(w io.Writer, level, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "2006-01-02 15:04:05"}).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
