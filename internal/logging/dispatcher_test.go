package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/rigsync/internal/dispatcher"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		log   func(*DispatcherLogger)
		want  map[string]any
	}{
		{
			name:  "debug",
			level: slog.LevelDebug,
			log:   func(l *DispatcherLogger) { l.Debug("dispatching", "command", ":TICK:", "args", 0) },
			want:  map[string]any{"level": "DEBUG", "msg": "dispatching", "command": ":TICK:", "args": float64(0)},
		},
		{
			name:  "info",
			level: slog.LevelInfo,
			log:   func(l *DispatcherLogger) { l.Info("handler registered", "command", ":ATTACH:") },
			want:  map[string]any{"level": "INFO", "msg": "handler registered", "command": ":ATTACH:"},
		},
		{
			name:  "error",
			level: slog.LevelError,
			log: func(l *DispatcherLogger) {
				l.Error("handler failed", "command", ":CALIBRATE:", "error", "degenerate direction vector")
			},
			want: map[string]any{"level": "ERROR", "msg": "handler failed", "command": ":CALIBRATE:", "error": "degenerate direction vector"},
		},
		{
			name:  "no key values",
			level: slog.LevelDebug,
			log:   func(l *DispatcherLogger) { l.Debug("queue drained") },
			want:  map[string]any{"level": "DEBUG", "msg": "queue drained"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: tt.level})))
			tt.log(l)

			entry := decodeEntry(t, &buf)
			for k, v := range tt.want {
				assert.Equal(t, v, entry[k], k)
			}
		})
	}
}

func TestDispatcherLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	l.Debug("dispatching", "command", ":TICK:")
	assert.Empty(t, buf.String())
}

func TestDispatcherLogger_WithDispatcher(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	d, err := dispatcher.New(logger)
	require.NoError(t, err)
	defer d.Close()
	d.Register(":VERSION:", func(dispatcher.Event) (any, error) { return "0.0.1", nil }, dispatcher.Logged())

	got, err := d.Dispatch(dispatcher.Event{Command: ":VERSION:"})
	require.NoError(t, err)
	assert.Equal(t, "0.0.1", got)
	assert.Contains(t, buf.String(), ":VERSION:")
}
