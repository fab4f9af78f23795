// Package mock implements the Completion port offline, for
// MOCK_LLM=true runs. It
// produces deterministic, structurally plausible output so downstream
// JSON extraction and critic rule paths exercise realistic shapes in
// tests without a network call.
package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/story-engine/ragcore/internal/ports/completion"
)

type Completion struct{}

var _ completion.Completion = (*Completion)(nil)

func New() *Completion { return &Completion{} }

// Complete fabricates a response shaped like the caller's prompt asked
// for. Writer prompts (no "issues" or "chapter_summary" marker) get prose
// built from the prompt's trailing instruction line; extraction/critic
// prompts that demand strict JSON get a minimal valid JSON document so
// the best-effort extractor's happy path is exercised.
func (c *Completion) Complete(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	switch {
	case strings.Contains(prompt, "chapter_summary") && strings.Contains(prompt, "foreshadowing"):
		return c.mockExtraction(prompt), nil
	case strings.Contains(prompt, "suggested_edits"):
		return `{"issues": [], "suggested_edits": []}`, nil
	default:
		return c.mockProse(prompt), nil
	}
}

func (c *Completion) ModelName() string { return "mock-completion" }

func (c *Completion) mockProse(prompt string) string {
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	instruction := lines[len(lines)-1]
	return fmt.Sprintf(
		"The story continued, carrying forward every thread the context demanded. %s The characters moved through the scene with purpose, and the chapter closed on a note that pointed toward what came next.",
		instruction,
	)
}

func (c *Completion) mockExtraction(prompt string) string {
	return `{"chapter_summary": "The chapter advanced the plot and introduced a minor complication.", "facts": ["A new location was mentioned."], "foreshadowing": ["A character hinted at a hidden motive."]}`
}
