package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

var _ Logger = (*SlogAdapter)(nil)

func TestNewSlogAdapterNilFallsBack(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	if adapter.logger == nil {
		t.Error("adapter.logger should not be nil when created with nil")
	}
}

func TestSlogAdapterForwardsLevels(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	tests := []struct {
		level string
		log   func(msg string, args ...interface{})
	}{
		{"DEBUG", adapter.Debug},
		{"INFO", adapter.Info},
		{"WARN", adapter.Warn},
		{"ERROR", adapter.Error},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.log("slot search finished", "calendar", "primary", "proposals", 3)

			out := buf.String()
			if !strings.Contains(out, "level="+tt.level) {
				t.Errorf("output %q missing level %s", out, tt.level)
			}
			if !strings.Contains(out, "slot search finished") || !strings.Contains(out, "calendar=primary") {
				t.Errorf("output %q missing message or attributes", out)
			}
		})
	}
}

func TestSlogAdapterLogger(t *testing.T) {
	logger := slog.Default()
	if NewSlogAdapter(logger).Logger() != logger {
		t.Error("Logger() should return the underlying logger")
	}
}

func TestDefaultLogger(t *testing.T) {
	if DefaultLogger().logger == nil {
		t.Error("DefaultLogger().logger should not be nil")
	}
}
