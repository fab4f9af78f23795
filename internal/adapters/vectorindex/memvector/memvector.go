// Package memvector is an in-process brute-force vector index, used as
// the zero-config default (VECTOR_INDEX_PROVIDER=memvector) and in
// tests that run without a live Qdrant server.
package memvector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/story-engine/ragcore/internal/ports/vectorindex"
)

type entry struct {
	id       string
	vector   []float32
	metadata map[string]string
}

// Index is an in-memory, per-project namespaced brute-force cosine scan.
// It never fails on its own (no network, no disk), making it the
// natural default for tests and for the "works with no external
// services" offline posture the core's mock providers establish
// elsewhere.
type Index struct {
	mu        sync.RWMutex
	dimension int
	byProject map[string]map[string]entry // project -> id -> entry
}

var _ vectorindex.VectorIndex = (*Index)(nil)

func New(dimension int) *Index {
	return &Index{dimension: dimension, byProject: map[string]map[string]entry{}}
}

func (idx *Index) Upsert(ctx context.Context, projectID string, ids []string, vectors [][]float32, metadata []map[string]string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	project, ok := idx.byProject[projectID]
	if !ok {
		project = map[string]entry{}
		idx.byProject[projectID] = project
	}
	for i, id := range ids {
		var meta map[string]string
		if i < len(metadata) {
			meta = metadata[i]
		}
		project[id] = entry{id: id, vector: vectors[i], metadata: meta}
	}
	return nil
}

func (idx *Index) Delete(ctx context.Context, projectID string, ids []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	project, ok := idx.byProject[projectID]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(project, id)
	}
	return nil
}

func (idx *Index) Search(ctx context.Context, projectID string, query []float32, topK int, filter map[string]string) ([]vectorindex.Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	project, ok := idx.byProject[projectID]
	if !ok || topK <= 0 {
		return nil, nil
	}

	hits := make([]vectorindex.Hit, 0, len(project))
	for _, e := range project {
		if !matchesFilter(e.metadata, filter) {
			continue
		}
		dist := cosineDistance(query, e.vector)
		hits = append(hits, vectorindex.Hit{ChunkID: e.id, Distance: dist, Metadata: e.metadata})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// cosineDistance returns 1 - cosine_similarity, so 0 is an exact match
// and the value grows as vectors diverge, matching the polarity of a
// genuine ANN distance metric.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - similarity
}

func (idx *Index) Dimension() int { return idx.dimension }

func (idx *Index) Close() error { return nil }
