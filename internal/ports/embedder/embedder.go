// Package embedder defines the capability the retrieval engine composes
// against to turn text into dense vectors.
package embedder

import "context"

// Embedder produces unit-norm dense vectors for a configured model.
type Embedder interface {
	// EmbedTexts embeds a batch of documents.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// ModelName identifies the embedding model backing this implementation;
	// cache keys are scoped by it.
	ModelName() string
	// Dimension is the length of every vector this embedder produces.
	Dimension() int
}
