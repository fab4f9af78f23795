// Package httpapi implements the Reranker port against a local
// cross-encoder scoring server, for RERANK_PROVIDER=local_bge.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
	"github.com/story-engine/ragcore/internal/ports/reranker"
)

// Reranker calls a local BGE cross-encoder server exposing a /rerank
// endpoint that scores each candidate text against the query.
type Reranker struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ reranker.Reranker = (*Reranker)(nil)

func New(baseURL, model string) *Reranker {
	return &Reranker{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (r *Reranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, ragerrors.NewBackendUnavailable("reranker", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, ragerrors.NewBackendUnavailable("reranker", fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	scores := make([]float64, len(texts))
	for _, res := range decoded.Results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = res.RelevanceScore
		}
	}
	return scores, nil
}

func (r *Reranker) ModelName() string { return r.model }

func (r *Reranker) Kind() reranker.Kind { return reranker.KindCrossEncoder }
