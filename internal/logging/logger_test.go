package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		env   string
		debug bool
		want  log.Level
	}{
		{"", false, log.InfoLevel},
		{"debug", false, log.DebugLevel},
		{"warn", false, log.WarnLevel},
		{"error", false, log.ErrorLevel},
		{"bogus", false, log.InfoLevel},
		{"error", true, log.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("NCVAL_LOG_LEVEL", tt.env)
			if got := Level(tt.debug); got != tt.want {
				t.Errorf("Level(%v) = %v, want %v", tt.debug, got, tt.want)
			}
		})
	}
}

func TestLoggerWithWriter(t *testing.T) {
	t.Setenv("NCVAL_LOG_LEVEL", "warn")
	t.Setenv("NCVAL_LOG_PREFIX", "test")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf, false)
	defer lg.Close()

	sl := slog.New(lg.Logger)
	sl.Info("hidden")
	sl.Warn("Region rejected", "violations", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	for _, want := range []string{"test", "Region rejected", "violations=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestIsDebug(t *testing.T) {
	t.Setenv("NCVAL_LOG_LEVEL", "debug")
	if !IsDebug() {
		t.Error("IsDebug() = false")
	}
	t.Setenv("NCVAL_LOG_LEVEL", "info")
	if IsDebug() {
		t.Error("IsDebug() = true")
	}
}
