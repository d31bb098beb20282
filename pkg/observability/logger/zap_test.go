package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level LogLevel
		log   func(Logger)
		want  bool
	}{
		{DebugLevel, func(l Logger) { l.Debug("m") }, true},
		{InfoLevel, func(l Logger) { l.Debug("m") }, false},
		{InfoLevel, func(l Logger) { l.Info("m") }, true},
		{WarnLevel, func(l Logger) { l.Info("m") }, false},
		{WarnLevel, func(l Logger) { l.Warn("m") }, true},
		{ErrorLevel, func(l Logger) { l.Warn("m") }, false},
		{ErrorLevel, func(l Logger) { l.Error("m") }, true},
		{"", func(l Logger) { l.Info("m") }, true},
		{"WARN", func(l Logger) { l.Info("m") }, false},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		l, err := NewZapLogger(Config{Level: tt.level, Format: JSONFormat, Output: &buf})
		if err != nil {
			t.Fatalf("NewZapLogger() error = %v", err)
		}
		tt.log(l)
		_ = l.Sync()
		if got := buf.Len() > 0; got != tt.want {
			t.Fatalf("level %q: logged = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewZapLogger_InvalidConfig(t *testing.T) {
	if _, err := NewZapLogger(Config{Level: "verbose"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewZapLogger(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestZapLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewZapLogger(Config{Format: TextFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewZapLogger() error = %v", err)
	}
	l.Info("document store initialized", "backend", "memory")
	_ = l.Sync()

	line := buf.String()
	if !strings.Contains(line, "INFO") || !strings.Contains(line, `"backend": "memory"`) {
		t.Fatalf("unexpected console line %q", line)
	}
}

func TestZapLogger_Enabled(t *testing.T) {
	l, _ := NewZapLogger(Config{Level: WarnLevel, Output: &bytes.Buffer{}})
	child := l.With("table", "users").(*ZapLogger)

	if child.Enabled(InfoLevel) {
		t.Error("info must be disabled at warn")
	}
	if !child.Enabled(ErrorLevel) {
		t.Error("error must be enabled at warn")
	}
	if child.Enabled("bogus") {
		t.Error("unknown level must report disabled")
	}
}

func TestZapLogger_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l, _ := NewZapLogger(Config{Level: InfoLevel, Format: JSONFormat, Service: "docgate", Output: &buf})

	l.With("backend", "memory").Info("document store initialized", "table", "users")
	_ = l.Sync()

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e["message"] != "document store initialized" || e["backend"] != "memory" || e["table"] != "users" {
		t.Fatalf("unexpected entry: %v", e)
	}
	if e["service"] != "docgate" {
		t.Fatalf("expected service field, got %v", e)
	}
	if _, ok := e["timestamp"]; !ok {
		t.Fatal("expected timestamp field")
	}
}

func TestZapLogger_WithContextOperationID(t *testing.T) {
	var buf bytes.Buffer
	l, _ := NewZapLogger(Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})

	ctx := ContextWithOperationID(context.Background(), "op-1")
	l.WithContext(ctx).Info("query executed")
	l.WithContext(context.Background()).Info("no id")
	_ = l.Sync()

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0]["operation_id"] != "op-1" {
		t.Fatalf("expected operation_id, got %v", entries[0])
	}
	if _, ok := entries[1]["operation_id"]; ok {
		t.Fatalf("unexpected operation_id: %v", entries[1])
	}
}

func TestNewNop(t *testing.T) {
	var l Logger = NewNop()
	l.Info("discarded", "k", "v")
	if l.With("a", 1) == nil {
		t.Fatal("With must return a logger")
	}
}
