package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"":        LevelInfo,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		" fatal ": LevelFatal,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) returned error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLogrusLogger_DerivedLoggerSharesOutputAndLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.Fields = map[string]string{"service": "test"}
	base := NewLogrusLogger(cfg)

	var buf bytes.Buffer
	child := base.WithField("component", "registry")
	child.SetOutput(&buf)
	child.SetLevel(LevelWarn)

	child.Info("dropped")
	child.Warnf("kept %d", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["message"] != "kept 1" {
		t.Errorf("unexpected message %v", entry["message"])
	}
	if entry["component"] != "registry" || entry["service"] != "test" {
		t.Errorf("expected static and derived fields, got %v", entry)
	}
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger().WithFields(Fields{"a": 1})
	l.Info("nothing")
	l.SetLevel(LevelDebug)
}
