package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewComponentLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
	}{
		{"debug", "debug", true},
		{"info", "info", false},
		{"empty falls back to info", "", false},
		{"garbage falls back to info", "loud", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewComponentLogger(&buf, tt.level, "database")

			log.Debug().Msg("probe")
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("probe")))

			log.Info().Msg("connected")
			assert.Contains(t, buf.String(), "connected")
			assert.Contains(t, buf.String(), "component=database")
		})
	}
}
