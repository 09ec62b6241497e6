// Package llm wraps chat-completion backends behind a small deterministic
// interface. Callers pass a seed so repeated runs with identical prompts can
// reproduce the same transcript on backends that honor seeding.
package llm

import (
	"context"
)

// GenerateRequest carries one prompt to a backend.
type GenerateRequest struct {
	// SystemPrompt frames the persona. Empty uses the backend default.
	SystemPrompt string
	// Prompt is the user message.
	Prompt string
	// Seed pins sampling for reproducibility on backends that support it.
	Seed int
	// Temperature of 0 requests greedy decoding.
	Temperature float32
	// MaxTokens caps the completion length. Zero leaves the backend default.
	MaxTokens int
}

// Service produces a text completion for a prompt.
type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
