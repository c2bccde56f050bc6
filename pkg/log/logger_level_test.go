package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LogLevel
	}{
		{name: "debug lower", input: "debug", want: LevelDebug},
		{name: "info upper", input: "INFO", want: LevelInfo},
		{name: "warn mixed", input: "WaRn", want: LevelWarn},
		{name: "error", input: "error", want: LevelError},
		{name: "fatal", input: "fatal", want: LevelFatal},
		{name: "trim spaces", input: "  debug  ", want: LevelDebug},
		{name: "unknown fallback", input: "verbose", want: LevelInfo},
		{name: "empty fallback", input: "", want: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Fatalf("ParseLevel(%q)=%v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerWritesJSONAboveLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, LevelWarn, FormatJSON)

	l.Info("hidden %d", 1)
	l.Warn("chunk %d retried", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry should be filtered: %s", out)
	}
	if !strings.Contains(out, `"message":"chunk 3 retried"`) {
		t.Fatalf("missing warn entry: %s", out)
	}
	if !strings.Contains(out, `"caller":"logger_level_test.go:`) {
		t.Fatalf("caller should point at the test file: %s", out)
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, LevelDebug, FormatJSON).With("document", "paper.pdf")
	l.Debug("start")
	if !strings.Contains(buf.String(), `"document":"paper.pdf"`) {
		t.Fatalf("missing field: %s", buf.String())
	}
}

func TestSetupTeesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	if err := Setup("info", "json", path); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		_ = Close()
		globalLogger = nil
	})

	Debug("not written")
	Info("document %s done", "a.pdf")
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"document a.pdf done"`) {
		t.Fatalf("missing entry: %s", data)
	}
	if strings.Contains(string(data), "not written") {
		t.Fatalf("debug entry should be filtered: %s", data)
	}
}
