package mock

import (
	"context"
	"testing"
)

func TestRerankHigherHitCountScoresHigher(t *testing.T) {
	r := New()
	scores, err := r.Rerank(context.Background(), "dragon castle", []string{
		"a dragon flew over the castle",
		"the weather was mild today",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores[0] <= scores[1] {
		t.Fatalf("expected higher score for text with query-term hits, got %v", scores)
	}
}

func TestRerankKindIsRule(t *testing.T) {
	r := New()
	if r.Kind() != "rule" {
		t.Fatalf("expected rule kind, got %s", r.Kind())
	}
}

func TestQueryTokensFiltersShortTokens(t *testing.T) {
	tokens := QueryTokens("a big dragon is here, ok?")
	for _, tok := range tokens {
		if len(tok) < 2 {
			t.Fatalf("expected all tokens to have length >= 2, got %q", tok)
		}
	}
}
