// Package redis is an optional fast-path front for the embedding cache,
// consulted before the SQLite-backed table. Its absence (no REDIS_ADDR)
// is never an error: the embedding cache degrades to SQLite-only.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "embcache:"

// Front wraps a go-redis client as a write-through cache of embedding
// vectors, keyed the same way as the SQLite table (model_name + ":" +
// uuid5 of content).
type Front struct {
	client *redis.Client
	ttl    time.Duration
}

func New(addr string) *Front {
	if addr == "" {
		return nil
	}
	return &Front{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    24 * time.Hour,
	}
}

func (f *Front) Get(ctx context.Context, cacheKey string) ([]float32, bool, error) {
	if f == nil {
		return nil, false, nil
	}
	raw, err := f.client.Get(ctx, keyPrefix+cacheKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false, fmt.Errorf("decode cached vector: %w", err)
	}
	return vec, true, nil
}

func (f *Front) Put(ctx context.Context, cacheKey string, vector []float32) error {
	if f == nil {
		return nil
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	if err := f.client.Set(ctx, keyPrefix+cacheKey, raw, f.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (f *Front) Close() error {
	if f == nil {
		return nil
	}
	return f.client.Close()
}
