// Package completion abstracts LLM invocation behind a single call so the
// core never depends on a specific provider SDK.
package completion

import "context"

// Completion turns a (system, prompt) pair into generated text.
type Completion interface {
	Complete(ctx context.Context, system, prompt string, temperature float64) (string, error)
	ModelName() string
}
