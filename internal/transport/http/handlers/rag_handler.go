package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/story-engine/ragcore/internal/core/rag"
	"github.com/story-engine/ragcore/internal/platform/logger"
	"github.com/story-engine/ragcore/internal/ports/chunkstore"
	"github.com/story-engine/ragcore/internal/retrieval"
)

// RagHandler exposes the two retrieval introspection endpoints: per-type
// index statistics and a full pipeline-stage preview.
type RagHandler struct {
	chunks    chunkstore.ChunkStore
	retriever *retrieval.Retriever
	log       logger.Logger
}

func NewRagHandler(chunks chunkstore.ChunkStore, retriever *retrieval.Retriever, log logger.Logger) *RagHandler {
	return &RagHandler{chunks: chunks, retriever: retriever, log: log}
}

type typeStatsView struct {
	Chunks        int    `json:"chunks"`
	LastUpdatedAt string `json:"last_updated_at"`
}

// Stats handles GET /projects/{id}/rag/stats.
func (h *RagHandler) Stats(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	stats, err := h.chunks.Stats(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	view := make(map[rag.DocType]typeStatsView, len(stats))
	for t, s := range stats {
		view[t] = typeStatsView{Chunks: s.Chunks, LastUpdatedAt: s.LastUpdatedAt}
	}
	writeData(w, http.StatusOK, view, nil)
}

type resultView struct {
	ChunkID   string  `json:"chunk_id"`
	Type      string  `json:"type"`
	SourceID  string  `json:"source_id"`
	ChapterNo *int    `json:"chapter_no,omitempty"`
	Channel   string  `json:"channel"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
}

type previewResponse struct {
	VectorHits  []resultView `json:"vector_hits"`
	KeywordHits []resultView `json:"keyword_hits"`
	Merged      []resultView `json:"merged"`
	Reranked    []resultView `json:"reranked"`
	Final       []resultView `json:"final"`
	ContextUsed string       `json:"context_used"`
}

// Preview handles GET /projects/{id}/rag/preview?chapter&query&top_k.
func (h *RagHandler) Preview(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	query := r.URL.Query().Get("query")
	topK := atoiOrDefault(r.URL.Query().Get("top_k"), 10)

	var filters retrieval.Filters
	filters.TopKVector = topK
	filters.TopKKeyword = topK
	if ch := r.URL.Query().Get("chapter"); ch != "" {
		n := atoiOrDefault(ch, 0)
		if n > 0 {
			filters.ChapterNo = &n
			filters.ChapterOnlyBefore = true
		}
	}

	debug, err := h.retriever.RetrievePreview(r.Context(), projectID, query, filters, topK)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, previewResponse{
		VectorHits:  renderResults(debug.VectorHits),
		KeywordHits: renderResults(debug.KeywordHits),
		Merged:      renderResults(debug.Merged),
		Reranked:    renderResults(debug.Reranked),
		Final:       renderResults(debug.Final),
		ContextUsed: retrieval.BuildContext(debug.Final, ""),
	}, nil)
}

func renderResults(results []retrieval.Result) []resultView {
	out := make([]resultView, 0, len(results))
	for _, r := range results {
		out = append(out, resultView{
			ChunkID:   r.Chunk.ID,
			Type:      string(r.Chunk.Type),
			SourceID:  r.Chunk.SourceID,
			ChapterNo: r.Chunk.ChapterNo,
			Channel:   string(r.Channel),
			Score:     r.Score,
			Snippet:   r.Chunk.Snippet,
		})
	}
	return out
}
