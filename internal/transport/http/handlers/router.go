package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/story-engine/ragcore/internal/orchestrator"
	"github.com/story-engine/ragcore/internal/platform/logger"
	"github.com/story-engine/ragcore/internal/ports/chunkstore"
	"github.com/story-engine/ragcore/internal/ports/projectstore"
	"github.com/story-engine/ragcore/internal/retrieval"
	"github.com/story-engine/ragcore/internal/transport/http/middleware"
)

// NewRouter builds the chi router for the full HTTP surface of spec.md
// §6, wiring the logging, recovery, and CORS middleware ahead of the
// seven routes.
func NewRouter(
	projects projectstore.ProjectStore,
	chunks chunkstore.ChunkStore,
	retriever *retrieval.Retriever,
	orch *orchestrator.Orchestrator,
	corsOrigins []string,
	log logger.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Use(middleware.CORS(corsOrigins))

	projectHandler := NewProjectHandler(projects, chunks, log)
	chapterHandler := NewChapterHandler(projects, orch, log)
	ragHandler := NewRagHandler(chunks, retriever, log)

	r.Post("/projects", projectHandler.Create)
	r.Get("/projects/{id}", projectHandler.Get)
	r.Post("/projects/{id}/outline", projectHandler.SetOutline)
	r.Post("/projects/{id}/characters", projectHandler.SetCharacters)
	r.Post("/projects/{id}/chapters/{n}/expand", chapterHandler.Expand)
	r.Get("/projects/{id}/rag/stats", ragHandler.Stats)
	r.Get("/projects/{id}/rag/preview", ragHandler.Preview)

	return r
}
