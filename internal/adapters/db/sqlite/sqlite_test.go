package sqlite

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/story-engine/ragcore/internal/core/rag"
	"github.com/story-engine/ragcore/internal/platform/logger"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func noopEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func TestReplaceBySourceIsThreeWayConsistent(t *testing.T) {
	db := openTestDB(t)
	store := New(db, nil, noopEmbed, logger.NoOp())
	ctx := context.Background()

	c1 := rag.NewChunk("p1", rag.TypeWorld, "doc-1", nil, "the ancient kingdom of varn", "the ancient...")
	if err := store.ReplaceBySource(ctx, "p1", rag.TypeWorld, "doc-1", []*rag.Chunk{c1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var primaryCount, ftsCount int
	db.QueryRow(`SELECT COUNT(*) FROM rag_chunks WHERE project_id = 'p1' AND source_id = 'doc-1'`).Scan(&primaryCount)
	db.QueryRow(`SELECT COUNT(*) FROM rag_chunks_fts WHERE project_id = 'p1' AND source_id = 'doc-1'`).Scan(&ftsCount)
	if primaryCount != 1 || ftsCount != 1 {
		t.Fatalf("expected 1 row in both primary and fts, got primary=%d fts=%d", primaryCount, ftsCount)
	}

	c2 := rag.NewChunk("p1", rag.TypeWorld, "doc-1", nil, "the new kingdom of bren", "the new...")
	if err := store.ReplaceBySource(ctx, "p1", rag.TypeWorld, "doc-1", []*rag.Chunk{c2}); err != nil {
		t.Fatalf("unexpected error on replace: %v", err)
	}

	db.QueryRow(`SELECT COUNT(*) FROM rag_chunks WHERE project_id = 'p1' AND source_id = 'doc-1'`).Scan(&primaryCount)
	db.QueryRow(`SELECT COUNT(*) FROM rag_chunks_fts WHERE project_id = 'p1' AND source_id = 'doc-1'`).Scan(&ftsCount)
	if primaryCount != 1 || ftsCount != 1 {
		t.Fatalf("expected replacement to leave exactly 1 row, got primary=%d fts=%d", primaryCount, ftsCount)
	}

	got, err := store.GetByID(ctx, c2.ID)
	if err != nil {
		t.Fatalf("unexpected error fetching replaced chunk: %v", err)
	}
	if got.Text != c2.Text {
		t.Fatalf("expected replaced chunk text, got %q", got.Text)
	}
}

func TestKeywordSearchFindsMatchingChunk(t *testing.T) {
	db := openTestDB(t)
	store := New(db, nil, noopEmbed, logger.NoOp())
	ctx := context.Background()

	c := rag.NewChunk("p1", rag.TypeWorld, "doc-1", nil, "the dragon circled the tower at dawn", "the dragon...")
	if err := store.ReplaceBySource(ctx, "p1", rag.TypeWorld, "doc-1", []*rag.Chunk{c}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hits, err := store.KeywordSearch(ctx, "p1", "dragon tower", nil, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Chunk.ID != c.ID {
		t.Fatalf("expected to find the indexed chunk")
	}
}

func TestKeywordSearchAppliesCausalBound(t *testing.T) {
	db := openTestDB(t)
	store := New(db, nil, noopEmbed, logger.NoOp())
	ctx := context.Background()

	for _, n := range []int{1, 2, 3, 4, 5} {
		chapterNo := n
		c := rag.NewChunk("p1", rag.TypeChapter, "ch-"+string(rune('0'+n)), &chapterNo, "lorem ipsum dolor", "lorem...")
		if err := store.ReplaceBySource(ctx, "p1", rag.TypeChapter, c.SourceID, []*rag.Chunk{c}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	chapterMax := 2
	hits, err := store.KeywordSearch(ctx, "p1", "lorem ipsum", []rag.DocType{rag.TypeChapter}, &chapterMax, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, h := range hits {
		if h.Chunk.ChapterNo != nil && *h.Chunk.ChapterNo > chapterMax {
			t.Fatalf("expected causal bound to exclude chapter_no > %d, got %d", chapterMax, *h.Chunk.ChapterNo)
		}
	}
}

func TestEmbeddingCacheUpsert(t *testing.T) {
	db := openTestDB(t)
	cache := NewEmbeddingCache(db)
	ctx := context.Background()

	key := CacheKey("model-a", "some content")
	if err := cache.Put(ctx, key, "model-a", []float32{1, 2, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cache.Put(ctx, key, "model-a", []float32{4, 5, 6}); err != nil {
		t.Fatalf("unexpected error on upsert: %v", err)
	}

	vec, ok, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if vec[0] != 4 {
		t.Fatalf("expected upsert to overwrite, got %v", vec)
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM embedding_cache WHERE cache_key = ?`, key).Scan(&count)
	if count != 1 {
		t.Fatalf("expected exactly one row after upsert, got %d", count)
	}
}

func TestCacheKeyIsDeterministicAndModelScoped(t *testing.T) {
	a := CacheKey("model-a", "same text")
	b := CacheKey("model-a", "same text")
	c := CacheKey("model-b", "same text")
	if a != b {
		t.Fatalf("expected deterministic cache key")
	}
	if a == c {
		t.Fatalf("expected different models to produce different cache keys")
	}
}
