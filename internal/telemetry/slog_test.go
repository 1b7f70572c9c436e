package telemetry

import (
	"log/slog"
	"testing"
)

func TestSetupLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			SetupLogger("text", tt.level)
			logger := slog.Default()
			if !logger.Enabled(nil, tt.want) {
				t.Errorf("level %q: logger not enabled at %v", tt.level, tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(nil, tt.want-4) {
				t.Errorf("level %q: logger unexpectedly enabled below %v", tt.level, tt.want)
			}
		})
	}
}

func TestSetupLogger_JSONFormatDoesNotPanic(t *testing.T) {
	SetupLogger("json", "info")
	slog.Info("test entry", "key", "value")
}
