// Package embedcache implements the embedding cache component (§4.4):
// given a batch of texts and the active embedder, returns one vector per
// text, computing and persisting any cache miss exactly once. A Redis
// front (optional) is consulted before the authoritative SQLite table.
package embedcache

import (
	"context"
	"fmt"

	"github.com/story-engine/ragcore/internal/ports/embedder"
)

// Store is the persistence contract the cache composes against — the
// SQLite-backed implementation in adapters/db/sqlite satisfies it.
type Store interface {
	Get(ctx context.Context, cacheKey string) ([]float32, bool, error)
	Put(ctx context.Context, cacheKey, modelName string, vector []float32) error
}

// Front is an optional fast-path layer consulted before Store; a nil
// Front is always a miss and Put becomes a no-op, so the cache degrades
// to SQLite-only when Redis isn't configured.
type Front interface {
	Get(ctx context.Context, cacheKey string) ([]float32, bool, error)
	Put(ctx context.Context, cacheKey string, vector []float32) error
}

// KeyFunc derives a cache key from the model name and content, kept as a
// function value so both layers of this package and the chunk store's
// vector-write path share the exact same derivation.
type KeyFunc func(modelName, content string) string

type Cache struct {
	embedder embedder.Embedder
	store    Store
	front    Front
	key      KeyFunc
}

func New(e embedder.Embedder, store Store, front Front, key KeyFunc) *Cache {
	return &Cache{embedder: e, store: store, front: front, key: key}
}

// EmbedTexts returns one vector per text, using the cache wherever
// possible and computing + persisting the remainder in a single embedder
// batch call, preserving order.
func (c *Cache) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	model := c.embedder.ModelName()
	out := make([][]float32, len(texts))
	misses := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, t := range texts {
		key := c.key(model, t)

		if c.front != nil {
			if vec, ok, err := c.front.Get(ctx, key); err == nil && ok {
				out[i] = vec
				continue
			}
		}

		vec, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("embedding cache lookup: %w", err)
		}
		if ok {
			out[i] = vec
			if c.front != nil {
				_ = c.front.Put(ctx, key, vec)
			}
			continue
		}

		misses = append(misses, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	computed, err := c.embedder.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embed cache misses: %w", err)
	}

	for j, idx := range misses {
		out[idx] = computed[j]
		key := c.key(model, texts[idx])
		if err := c.store.Put(ctx, key, model, computed[j]); err != nil {
			return nil, fmt.Errorf("persist embedding: %w", err)
		}
		if c.front != nil {
			_ = c.front.Put(ctx, key, computed[j])
		}
	}

	return out, nil
}

// EmbedQuery embeds a single query string, never cached — queries are
// typically unique per request and caching them would only grow the
// table without hit rate.
func (c *Cache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embedder.EmbedQuery(ctx, text)
}

func (c *Cache) ModelName() string { return c.embedder.ModelName() }
