// Package critic implements the consistency critic (§4.9): a rule-based
// offline reviewer and an LLM-backed reviewer, both producing the same
// {issues[], suggested_edits[], revised_text?} shape.
package critic

import (
	"context"
	"strings"

	"github.com/story-engine/ragcore/internal/ports/completion"
	"github.com/story-engine/ragcore/internal/writeback"
)

type Issue struct {
	Type     string // character | style | timeline
	Severity string // low | medium | high
	Evidence string
}

type Review struct {
	Issues         []Issue
	SuggestedEdits []string
	RevisedText    string
}

// Critic reviews a draft chapter against the project's known characters
// and the assembled retrieval context.
type Critic struct {
	completion completion.Completion
	mode       Mode
}

type Mode string

const (
	ModeRule Mode = "mock"
	ModeLLM  Mode = "llm"
)

func New(mode Mode, c completion.Completion) *Critic {
	return &Critic{completion: c, mode: mode}
}

func (c *Critic) Review(ctx context.Context, characterNames []string, contextUsed, draft string, autoRevise bool) (Review, error) {
	if c.mode == ModeLLM {
		return c.llmReview(ctx, characterNames, contextUsed, draft, autoRevise)
	}
	return RuleReview(characterNames, contextUsed, draft), nil
}

func (c *Critic) llmReview(ctx context.Context, characterNames []string, contextUsed, draft string, autoRevise bool) (Review, error) {
	prompt := buildCriticPrompt(characterNames, contextUsed, draft, autoRevise)
	raw, err := c.completion.Complete(ctx, criticSystemPrompt, prompt, 0.3)
	if err != nil {
		return RuleReview(characterNames, contextUsed, draft), nil
	}

	fallback := map[string]any{"issues": []any{}, "suggested_edits": []any{}}
	decoded := writeback.ParseLLMJSON(raw, fallback)

	var review Review
	if rawIssues, ok := decoded["issues"].([]any); ok {
		for _, ri := range rawIssues {
			m, ok := ri.(map[string]any)
			if !ok {
				continue
			}
			issue := Issue{}
			issue.Type, _ = m["issue_type"].(string)
			issue.Severity, _ = m["severity"].(string)
			issue.Evidence, _ = m["evidence"].(string)
			review.Issues = append(review.Issues, issue)
		}
	}
	if rawEdits, ok := decoded["suggested_edits"].([]any); ok {
		for _, e := range rawEdits {
			if s, ok := e.(string); ok {
				review.SuggestedEdits = append(review.SuggestedEdits, s)
			}
		}
	}
	if autoRevise {
		if revised, ok := decoded["revised_text"].(string); ok {
			review.RevisedText = revised
		}
	}
	return review, nil
}

const criticSystemPrompt = "You review a drafted chapter for consistency with the established story constraints. Respond with strict JSON only: {\"issues\": [{\"issue_type\": string, \"severity\": string, \"evidence\": string}], \"suggested_edits\": [string], \"revised_text\": string}."

func buildCriticPrompt(characterNames []string, contextUsed, draft string, autoRevise bool) string {
	var sb strings.Builder
	sb.WriteString("Known characters: " + strings.Join(characterNames, ", ") + "\n\n")
	sb.WriteString("Retrieved context:\n" + contextUsed + "\n\n")
	sb.WriteString("Draft chapter:\n" + draft + "\n\n")
	if autoRevise {
		sb.WriteString("If issues warrant a rewrite, include revised_text; otherwise omit it.\n")
	} else {
		sb.WriteString("Do not include revised_text.\n")
	}
	sb.WriteString("Return issues and suggested_edits as strict JSON.")
	return sb.String()
}
