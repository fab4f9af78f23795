package mock

import (
	"context"
	"strings"
	"testing"
)

func TestCompleteExtractionPromptReturnsValidShape(t *testing.T) {
	c := New()
	out, err := c.Complete(context.Background(), "", "Extract chapter_summary, facts, foreshadowing as JSON", 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "chapter_summary") {
		t.Fatalf("expected mock extraction output to contain chapter_summary, got %q", out)
	}
}

func TestCompleteCriticPromptReturnsIssuesShape(t *testing.T) {
	c := New()
	out, err := c.Complete(context.Background(), "", "Return issues and suggested_edits", 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "suggested_edits") {
		t.Fatalf("expected critic-shaped output, got %q", out)
	}
}

func TestCompleteWriterPromptReturnsProse(t *testing.T) {
	c := New()
	out, err := c.Complete(context.Background(), "", "Write the next chapter.\nFocus on the betrayal.", 0.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected non-empty prose output")
	}
}
