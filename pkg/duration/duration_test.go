package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"seconds", 45 * time.Second, "45s"},
		{"minutes", 30 * time.Minute, "30m"},
		{"hours", 12 * time.Hour, "12h"},
		{"hours and seconds skip minutes", time.Hour + 10*time.Second, "1h10s"},
		{"one day", 24 * time.Hour, "1d"},
		{"days", 3 * 24 * time.Hour, "3d"},
		{"one week", 7 * 24 * time.Hour, "1w"},
		{"weeks and days", 9 * 24 * time.Hour, "1w2d"},
		{"weeks days hours", 9*24*time.Hour + 12*time.Hour, "1w2d12h"},
		{"sub-second", 250 * time.Millisecond, "250ms"},
		{"mixed sub-second", time.Second + 5*time.Millisecond, "1s5ms"},
		{"negative", -3 * 24 * time.Hour, "-3d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.duration))
		})
	}
}
