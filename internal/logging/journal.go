package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/OCAP2/rigsync/internal/dispatcher"
)

// CommandJournal writes one JSON line per handled command.
type CommandJournal struct {
	logger zerolog.Logger
}

// NewCommandJournal creates a journal writing JSONL to w.
func NewCommandJournal(w io.Writer) *CommandJournal {
	return &CommandJournal{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// Record implements dispatcher.Journal.
func (j *CommandJournal) Record(e dispatcher.Event, result any, err error, took time.Duration) {
	var ev *zerolog.Event
	if err != nil {
		ev = j.logger.Error().Err(err)
	} else {
		ev = j.logger.Info()
	}
	ev = ev.
		Str("command", e.Command).
		Strs("args", e.Args).
		Time("received", e.Timestamp.UTC()).
		Dur("took", took)
	if s, ok := result.(string); ok && s != "" {
		ev = ev.Str("result", s)
	}
	ev.Msg("command")
}
