package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimQuotes(tt.input))
		})
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no escaped quotes", "hello", "hello"},
		{"single escaped quote", `he""llo`, `he"llo`},
		{"multiple escaped quotes", `a""b""c`, `a"b"c`},
		{"consecutive escaped", `a""""b`, `a""b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FixEscapeQuotes(tt.input))
		})
	}
}

func TestCleanArg(t *testing.T) {
	assert.Equal(t, `take "one" again`, CleanArg(` "take ""one"" again" `))
	assert.Equal(t, "Avatar", CleanArg("Avatar"))
}

func TestParseFloats(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		n       int
		want    []float64
		wantErr bool
	}{
		{"plain", "1,2,3", 3, []float64{1, 2, 3}, false},
		{"bracketed with spaces", "[ 0.5, -1 , 2e-1 ]", 3, []float64{0.5, -1, 0.2}, false},
		{"quaternion", "0,0,0,1", 4, []float64{0, 0, 0, 1}, false},
		{"too few", "1,2", 3, nil, true},
		{"too many", "1,2,3,4", 3, nil, true},
		{"not a number", "1,x,3", 3, nil, true},
		{"nan", "1,NaN,3", 3, nil, true},
		{"inf", "1,2,+Inf", 3, nil, true},
		{"empty", "", 3, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFloats(tt.input, tt.n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}
