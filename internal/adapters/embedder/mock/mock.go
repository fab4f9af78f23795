// Package mock is a deterministic Embedder used for tests and as the
// zero-config default (EMBEDDINGS_PROVIDER=mock).
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/story-engine/ragcore/internal/ports/embedder"
)

const defaultDimension = 64

// Embedder derives a seed from a stable hash of the input text and emits
// a pseudo-random vector of fixed dimension, normalized to unit length
// so every implementation of the embedder port satisfies the vector
// index's unit-norm invariant (the source this is ported from does not
// normalize; see the Open Questions section of the design ledger).
type Embedder struct {
	dimension int
	model     string
}

var _ embedder.Embedder = (*Embedder)(nil)

func New(model string, dimension int) *Embedder {
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &Embedder{dimension: dimension, model: model}
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *Embedder) ModelName() string { return e.model }

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) embed(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float32, e.dimension)
	var normSq float64
	for i := range vec {
		v := rng.Float64()*2 - 1 // uniform(-1, 1)
		vec[i] = float32(v)
		normSq += v * v
	}

	norm := math.Sqrt(normSq)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
