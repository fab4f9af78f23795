// Package reranker defines the capability used to score (query, text)
// pairs during the retrieval pipeline's rerank step.
package reranker

import "context"

// Kind distinguishes a real cross-encoder from the rule-based mock; the
// retriever gates its rule-based lift on Kind() == Rule so the lift is
// never double-applied on top of a genuine cross-encoder.
type Kind string

const (
	KindRule         Kind = "rule"
	KindCrossEncoder Kind = "cross_encoder"
)

// Reranker scores candidate texts against a query, higher is better.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
	ModelName() string
	Kind() Kind
}
