// Package mock implements the rule-based Reranker: a term-hit count
// minus a logarithmic length penalty, standing in for a real
// cross-encoder.
package mock

import (
	"context"
	"math"
	"strings"

	"github.com/story-engine/ragcore/internal/ports/reranker"
)

// Reranker scores (query, text) pairs by query-token occurrence, penalized
// by text length.
type Reranker struct{}

var _ reranker.Reranker = (*Reranker)(nil)

func New() *Reranker { return &Reranker{} }

func (r *Reranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	tokens := QueryTokens(query)
	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = RuleScore(tokens, text)
	}
	return scores, nil
}

func (r *Reranker) ModelName() string { return "rule-based-mock" }

func (r *Reranker) Kind() reranker.Kind { return reranker.KindRule }

// QueryTokens splits a query on whitespace/punctuation, keeping tokens of
// at least 2 characters, lower-cased.
func QueryTokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// RuleScore counts query-token occurrences in text and subtracts a
// logarithmic length penalty.
func RuleScore(queryTokens []string, text string) float64 {
	lower := strings.ToLower(text)
	hits := 0.0
	for _, tok := range queryTokens {
		hits += float64(strings.Count(lower, tok))
	}
	lengthPenalty := math.Log(1 + float64(len([]rune(text))))
	return hits - 0.1*lengthPenalty
}
