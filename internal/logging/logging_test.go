package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
		wantWarn  bool
	}{
		{"quiet", false, false, true},
		{"debug", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&buf, tt.debug)
			logger.Debug("debug line")
			logger.Warn("warn line", "provider", "lrclib")

			out := buf.String()
			if strings.Contains(out, "debug line") != tt.wantDebug {
				t.Errorf("debug output present = %v, want %v", !tt.wantDebug, tt.wantDebug)
			}
			if strings.Contains(out, "warn line") != tt.wantWarn {
				t.Errorf("warn output missing: %q", out)
			}
			if !strings.Contains(out, "provider=lrclib") {
				t.Errorf("attributes missing: %q", out)
			}
		})
	}
}

func TestSetupWritesToStateDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	closeLog, err := Setup(true, false)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	slog.Info("hello", "k", "v")
	closeLog()

	data, err := os.ReadFile(filepath.Join(dir, "lyrisync", "lyrisync.log"))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %q", data)
	}
}
