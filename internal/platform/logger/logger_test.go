package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug")
	l.Info("chunk indexed", "project_id", "p1", "count", 3)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON log line, got error: %v (line: %s)", err, buf.String())
	}
	if decoded["project_id"] != "p1" {
		t.Fatalf("expected project_id field to be set, got %v", decoded["project_id"])
	}
	if decoded["message"] != "chunk indexed" {
		t.Fatalf("expected message field, got %v", decoded["message"])
	}
}

func TestWithAddsPersistentFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, "info")
	scoped := base.With("chapter_no", 4)
	scoped.Warn("causal filter triggered")

	if !strings.Contains(buf.String(), "chapter_no") {
		t.Fatalf("expected scoped field to appear in output: %s", buf.String())
	}
}

func TestNoOpDiscardsOutput(t *testing.T) {
	l := NoOp()
	l.Error("should not panic")
}
