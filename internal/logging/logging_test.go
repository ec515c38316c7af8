package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		verbose bool
		debug   bool
	}{
		{false, false},
		{true, true},
	}

	for _, tt := range tests {
		logger, err := New(tt.verbose)
		if err != nil {
			t.Fatalf("New(%v) error = %v", tt.verbose, err)
		}
		if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debug {
			t.Errorf("New(%v) debug enabled = %v, want %v", tt.verbose, got, tt.debug)
		}
		if !logger.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("New(%v) info should be enabled", tt.verbose)
		}
	}
}
