// Package chunkstore defines the three-way-consistent storage contract
// the chunk store adapter implements.
package chunkstore

import (
	"context"

	"github.com/story-engine/ragcore/internal/core/rag"
)

// KeywordHit is one keyword-channel candidate, carrying the index's
// native rank-derived score before the pipeline's 1/(1+r) conversion.
type KeywordHit struct {
	Chunk *rag.Chunk
	Rank  float64
}

// ChunkStore owns the primary relational table and the keyword (FTS)
// index, keeping them in lock-step per the three-way consistency
// invariant. The vector index is a separate port (vectorindex) that the
// store's Index/DeleteBySource operations also drive, best-effort.
type ChunkStore interface {
	// ReplaceBySource replaces all chunks of (projectID, docType, sourceID)
	// with newChunks, atomically in the primary table + keyword index.
	// It returns only an error; the written chunks are not returned.
	ReplaceBySource(ctx context.Context, projectID string, docType rag.DocType, sourceID string, newChunks []*rag.Chunk) error

	// DeleteBySource removes every chunk of (projectID, docType, sourceID)
	// from the primary table and the keyword index.
	DeleteBySource(ctx context.Context, projectID string, docType rag.DocType, sourceID string) error

	// KeywordSearch runs a full-text query scoped by projectID, optional
	// docTypes, and an optional causal chapter bound (chapterMax == nil
	// means no bound). Returns up to topK hits ordered by native rank.
	KeywordSearch(ctx context.Context, projectID, query string, docTypes []rag.DocType, chapterMax *int, topK int) ([]KeywordHit, error)

	// GetByID fetches a single chunk by its primary-table identity.
	GetByID(ctx context.Context, chunkID string) (*rag.Chunk, error)

	// Stats returns, per type, the chunk count and the most recent
	// created_at for projectID.
	Stats(ctx context.Context, projectID string) (map[rag.DocType]TypeStats, error)
}

// TypeStats is the per-type summary surfaced by GET /rag/stats.
type TypeStats struct {
	Chunks        int
	LastUpdatedAt string
}
