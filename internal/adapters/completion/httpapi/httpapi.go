// Package httpapi implements the Completion port against an
// OpenAI-compatible chat completions endpoint; cmd/api-http selects it
// when MOCK_LLM is false.
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
	"github.com/story-engine/ragcore/internal/ports/completion"
)

type Completion struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ completion.Completion = (*Completion)(nil)

func New(baseURL, apiKey, model string) *Completion {
	return &Completion{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Completion) Complete(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ragerrors.NewBackendUnavailable("completion", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", ragerrors.NewBackendUnavailable("completion", fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", ragerrors.NewBackendUnavailable("completion", fmt.Errorf("empty choices"))
	}
	return decoded.Choices[0].Message.Content, nil
}

func (c *Completion) ModelName() string { return c.model }
