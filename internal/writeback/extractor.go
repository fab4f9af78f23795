package writeback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/story-engine/ragcore/internal/ports/completion"
)

// Extraction is the writeback extractor's output: chapter_summary as
// plain text, facts and foreshadowing as serialised JSON lists so every
// field chunks uniformly through the same chunker.
type Extraction struct {
	ChapterSummary    string
	FactsJSON         string
	ForeshadowingJSON string
}

const fallbackSummaryChars = 600

// Extractor requests a strict {chapter_summary, facts[], foreshadowing[]}
// document from the completion port, tolerating malformed output via
// ParseLLMJSON.
type Extractor struct {
	completion completion.Completion
}

func New(c completion.Completion) *Extractor {
	return &Extractor{completion: c}
}

func (e *Extractor) Extract(ctx context.Context, chapterNo int, chapterText string) (Extraction, error) {
	prompt := buildExtractionPrompt(chapterNo, chapterText)

	raw, err := e.completion.Complete(ctx, extractionSystemPrompt, prompt, 0.2)
	if err != nil {
		return fallbackExtraction(chapterText), nil
	}

	fallback := map[string]any{
		"chapter_summary": truncate(chapterText, fallbackSummaryChars),
		"facts":           []any{},
		"foreshadowing":   []any{},
	}
	decoded := ParseLLMJSON(raw, fallback)

	summary, _ := decoded["chapter_summary"].(string)
	if summary == "" {
		summary = truncate(chapterText, fallbackSummaryChars)
	}

	factsJSON, err := json.Marshal(decoded["facts"])
	if err != nil {
		factsJSON = []byte("[]")
	}
	foreshadowingJSON, err := json.Marshal(decoded["foreshadowing"])
	if err != nil {
		foreshadowingJSON = []byte("[]")
	}

	return Extraction{
		ChapterSummary:    summary,
		FactsJSON:         string(factsJSON),
		ForeshadowingJSON: string(foreshadowingJSON),
	}, nil
}

func fallbackExtraction(chapterText string) Extraction {
	return Extraction{
		ChapterSummary:    truncate(chapterText, fallbackSummaryChars),
		FactsJSON:         "[]",
		ForeshadowingJSON: "[]",
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

const extractionSystemPrompt = "You extract structured memory from a finished chapter. Respond with strict JSON only: {\"chapter_summary\": string, \"facts\": [string], \"foreshadowing\": [string]}."

func buildExtractionPrompt(chapterNo int, chapterText string) string {
	return fmt.Sprintf(
		"Chapter %d text:\n\n%s\n\nExtract chapter_summary, facts, foreshadowing as strict JSON.",
		chapterNo, chapterText,
	)
}
