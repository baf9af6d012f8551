package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range cases {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tc.input, got, tc.expected)
		}
	}
}

func TestSetLevel_ChangesLevelDynamically(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelInfo)

	log.Debug("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("expected debug message to be suppressed at info level")
	}

	log.SetLevel(slog.LevelDebug)
	if log.GetLevel() != slog.LevelDebug {
		t.Errorf("expected level debug, got %v", log.GetLevel())
	}

	log.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("expected debug message after lowering level")
	}
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelInfo)

	log.Info("vote cast", "election_id", "e-1", "candidate", "0xabc")

	out := buf.String()
	if !strings.Contains(out, "vote cast") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "election_id=e-1") {
		t.Errorf("expected structured field in output, got %q", out)
	}
}
