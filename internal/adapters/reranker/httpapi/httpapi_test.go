package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/story-engine/ragcore/internal/ports/reranker"
)

func TestRerankMapsScoresBackByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Documents) != 3 {
			t.Fatalf("expected 3 documents, got %d", len(req.Documents))
		}
		resp := rerankResponse{}
		resp.Results = []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}{
			{Index: 2, RelevanceScore: 0.9},
			{Index: 0, RelevanceScore: 0.1},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	r := New(srv.URL, "bge-reranker")
	scores, err := r.Rerank(context.Background(), "query", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}
	if scores[0] != 0.1 || scores[2] != 0.9 || scores[1] != 0 {
		t.Fatalf("unexpected scores: %+v", scores)
	}
}

func TestRerankKindIsCrossEncoder(t *testing.T) {
	r := New("http://unused", "bge-reranker")
	if r.Kind() != reranker.KindCrossEncoder {
		t.Fatalf("expected KindCrossEncoder, got %q", r.Kind())
	}
}

func TestRerankEmptyTextsReturnsNil(t *testing.T) {
	r := New("http://unused", "bge-reranker")
	scores, err := r.Rerank(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if scores != nil {
		t.Fatalf("expected nil scores for empty input, got %+v", scores)
	}
}
