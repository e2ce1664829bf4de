package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", line, err)
	}
	return m
}

func TestNewJSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})
	log.Info("starting up", "addr", ":0")

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["msg"] != "starting up" {
		t.Errorf("msg = %v, want %q", m["msg"], "starting up")
	}
	if m["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", m["level"])
	}
	if m["addr"] != ":0" {
		t.Errorf("addr = %v, want %q", m["addr"], ":0")
	}
}

func TestFatalLevelName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Level: "error", Format: "json", Output: &buf})
	log.Fatal("going down", "reason", "unrecoverable")

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["level"] != "FATAL" {
		t.Errorf("level = %v, want FATAL", m["level"])
	}
}

func TestFatalPassesLevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Level: "error", Format: "json", Output: &buf})

	log.Info("ignored")
	if buf.Len() != 0 {
		t.Fatalf("info record passed error filter: %q", buf.String())
	}

	log.Fatal("kept")
	if buf.Len() == 0 {
		t.Error("fatal record was filtered out")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"fatal", LevelFatal},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetLevelAffectsDerivedLoggers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})
	derived := log.WithUnit("unit-7")

	derived.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record passed info filter: %q", buf.String())
	}

	log.SetLevel(slog.LevelDebug)
	derived.Debug("visible")
	if buf.Len() == 0 {
		t.Fatal("debug record filtered after SetLevel(debug)")
	}
	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["unit_id"] != "unit-7" {
		t.Errorf("unit_id = %v, want unit-7", m["unit_id"])
	}
}

func TestAutoFormatFallsBackToJSON(t *testing.T) {
	t.Parallel()

	// A bytes.Buffer is not a terminal, so auto selects JSON.
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "auto", Output: &buf})
	log.Info("hello")

	decodeLine(t, strings.TrimSpace(buf.String()))
}

func TestPrettyHandlerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "pretty", Output: &buf})

	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")
	log.Fatal("f")

	out := buf.String()
	for _, tag := range []string{"DBG", "INF", "WRN", "ERR", "FTL"} {
		if !strings.Contains(out, tag) {
			t.Errorf("pretty output missing %s tag:\n%s", tag, out)
		}
	}
}

func TestPrettyHandlerAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "pretty", Output: &buf})
	log.WithComponent("snapshot").Info("saved", "path", "/tmp/x")

	out := buf.String()
	if !strings.Contains(out, "component") || !strings.Contains(out, "snapshot") {
		t.Errorf("pretty output missing component attr:\n%s", out)
	}
	if !strings.Contains(out, "path") || !strings.Contains(out, "/tmp/x") {
		t.Errorf("pretty output missing record attr:\n%s", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	t.Parallel()

	log := NewNop()
	// Must not panic and must not write anywhere observable.
	log.Info("nop")
	log.Fatal("nop")
}

func TestNilOutputDefaultsSafely(t *testing.T) {
	t.Parallel()

	log := New(Config{Level: "info", Format: "json"})
	if log == nil {
		t.Fatal("New returned nil")
	}
}
