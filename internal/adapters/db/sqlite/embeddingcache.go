package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EmbeddingCache persists (model_name, content) -> vector, upserting on
// write so a racing writer never duplicates a row (§4.4).
type EmbeddingCache struct {
	db *sql.DB
}

func NewEmbeddingCache(db *sql.DB) *EmbeddingCache {
	return &EmbeddingCache{db: db}
}

// CacheKey is model_name + ":" + uuid5(DNS, content), matching the
// original service's deterministic key derivation.
func CacheKey(modelName, content string) string {
	id := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(content))
	return modelName + ":" + id.String()
}

func (c *EmbeddingCache) Get(ctx context.Context, cacheKey string) ([]float32, bool, error) {
	var vectorJSON string
	err := c.db.QueryRowContext(ctx,
		`SELECT vector_json FROM embedding_cache WHERE cache_key = ?`, cacheKey,
	).Scan(&vectorJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}

	var vec []float32
	if err := json.Unmarshal([]byte(vectorJSON), &vec); err != nil {
		return nil, false, fmt.Errorf("decode cached vector: %w", err)
	}
	return vec, true, nil
}

func (c *EmbeddingCache) Put(ctx context.Context, cacheKey, modelName string, vector []float32) error {
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (cache_key, model_name, vector_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET vector_json = excluded.vector_json`,
		cacheKey, modelName, string(vectorJSON), time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}
