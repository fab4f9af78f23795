// Package httpapi implements the Embedder port against an
// OpenAI-compatible local embedding server, the common way BGE-M3 is
// self-hosted (EMBEDDINGS_PROVIDER=local_bge_m3).
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
	"github.com/story-engine/ragcore/internal/ports/embedder"
)

// Embedder calls an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

var _ embedder.Embedder = (*Embedder)(nil)

func New(baseURL, model string, dimension int) *Embedder {
	return &Embedder{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingsRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, ragerrors.NewBackendUnavailable("embedder", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, ragerrors.NewBackendUnavailable("embedder", fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}

	var decoded embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}

	out := make([][]float32, len(decoded.Data))
	for i, d := range decoded.Data {
		out[i] = normalize(d.Embedding)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ragerrors.NewBackendUnavailable("embedder", fmt.Errorf("empty response"))
	}
	return vecs[0], nil
}

func (e *Embedder) ModelName() string { return e.model }

func (e *Embedder) Dimension() int { return e.dimension }

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
