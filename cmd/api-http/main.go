// Command api-http wires every adapter behind the ports in internal/ports
// into a single HTTP server, following the teacher's CoreBuilder pattern:
// all construction happens here, explicitly, with no package-level
// singletons anywhere in the dependency graph.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	completionhttpapi "github.com/story-engine/ragcore/internal/adapters/completion/httpapi"
	mockcompletion "github.com/story-engine/ragcore/internal/adapters/completion/mock"
	redisadapter "github.com/story-engine/ragcore/internal/adapters/cache/redis"
	"github.com/story-engine/ragcore/internal/adapters/db/sqlite"
	embedhttpapi "github.com/story-engine/ragcore/internal/adapters/embedder/httpapi"
	mockembed "github.com/story-engine/ragcore/internal/adapters/embedder/mock"
	rerankhttpapi "github.com/story-engine/ragcore/internal/adapters/reranker/httpapi"
	mockrerank "github.com/story-engine/ragcore/internal/adapters/reranker/mock"
	"github.com/story-engine/ragcore/internal/adapters/vectorindex/memvector"
	"github.com/story-engine/ragcore/internal/adapters/vectorindex/qdrant"
	"github.com/story-engine/ragcore/internal/critic"
	"github.com/story-engine/ragcore/internal/embedcache"
	"github.com/story-engine/ragcore/internal/orchestrator"
	"github.com/story-engine/ragcore/internal/platform/config"
	"github.com/story-engine/ragcore/internal/platform/database"
	"github.com/story-engine/ragcore/internal/platform/logger"
	"github.com/story-engine/ragcore/internal/ports/completion"
	"github.com/story-engine/ragcore/internal/ports/embedder"
	"github.com/story-engine/ragcore/internal/ports/reranker"
	"github.com/story-engine/ragcore/internal/ports/vectorindex"
	"github.com/story-engine/ragcore/internal/retrieval"
	"github.com/story-engine/ragcore/internal/transport/http/handlers"
	"github.com/story-engine/ragcore/internal/writeback"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(os.Stdout, getLogLevel())

	db, err := database.Open(cfg.DB.Path)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := sqlite.Migrate(db.DB); err != nil {
		log.Error("migrate database", "error", err)
		os.Exit(1)
	}

	embed := buildEmbedder(cfg)
	rerank := buildReranker(cfg)
	llm := buildCompletion(cfg)
	vectors, err := buildVectorIndex(cfg, embed.Dimension())
	if err != nil {
		log.Error("build vector index", "error", err)
		os.Exit(1)
	}
	defer vectors.Close()

	var front embedcache.Front
	if cfg.RedisAddr != "" {
		redisFront := redisadapter.New(cfg.RedisAddr)
		defer redisFront.Close()
		front = redisFront
	}
	cache := embedcache.New(embed, sqlite.NewEmbeddingCache(db.DB), front, sqlite.CacheKey)

	chunks := sqlite.New(db.DB, vectors, cache.EmbedTexts, log)
	projects := sqlite.NewProjectStore(db.DB)

	retriever := retrieval.New(chunks, vectors, cache, rerank, log)
	extractor := writeback.New(llm)
	criticEngine := critic.New(criticMode(cfg.Critic.Provider), llm)
	orch := orchestrator.New(projects, chunks, retriever, llm, extractor, criticEngine, cfg.Critic.AutoRevise, log)

	router := handlers.NewRouter(projects, chunks, retriever, orch, cfg.HTTP.CORSOrigins, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		log.Info("received signal", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", "error", err)
			os.Exit(1)
		}

		log.Info("HTTP server stopped")
	}
}

func buildEmbedder(cfg *config.Config) embedder.Embedder {
	if cfg.Embeddings.Provider == "mock" {
		return mockembed.New(cfg.Embeddings.ModelName, cfg.Embeddings.Dimension)
	}
	return embedhttpapi.New(cfg.Embeddings.BaseURL, cfg.Embeddings.ModelName, cfg.Embeddings.Dimension)
}

func buildReranker(cfg *config.Config) reranker.Reranker {
	if cfg.Rerank.Provider == "mock" {
		return mockrerank.New()
	}
	return rerankhttpapi.New(cfg.Rerank.BaseURL, cfg.Rerank.ModelName)
}

func buildCompletion(cfg *config.Config) completion.Completion {
	if cfg.LLM.Mock {
		return mockcompletion.New()
	}
	return completionhttpapi.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
}

func buildVectorIndex(cfg *config.Config, dimension int) (vectorindex.VectorIndex, error) {
	if cfg.VectorIndexProv == "qdrant" {
		return qdrant.New(cfg.QdrantHost, cfg.QdrantPort, dimension)
	}
	return memvector.New(dimension), nil
}

func criticMode(provider string) critic.Mode {
	if provider == "llm" {
		return critic.ModeLLM
	}
	return critic.ModeRule
}

func getLogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}
