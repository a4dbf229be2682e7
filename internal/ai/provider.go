// Package ai wraps the text-generation provider behind a capability
// interface. Implementations contain every provider failure internally:
// callers always get a usable reply string, never an error.
package ai

import (
	"context"

	"go.uber.org/zap"
)

// FallbackMessage is returned when the provider is unavailable after
// retries, or when it returns an empty body on success.
const FallbackMessage = "I'm having trouble right now. Please try again in a moment."

// Turn is one entry of the conversation history sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Responder generates assistant replies from conversation history.
// GenerateResponse never fails; on persistent provider trouble it returns
// FallbackMessage so the pipeline can still answer the sender.
type Responder interface {
	GenerateResponse(ctx context.Context, history []Turn, systemPrompt string) string
	Name() string
}

// Options selects and configures the active provider.
type Options struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
}

// New returns the configured Responder. Unknown provider ids fall back to
// the OpenAI-compatible client, which covers most hosted endpoints.
func New(opts Options, logger *zap.Logger) Responder {
	switch opts.Provider {
	case "", "openai":
	default:
		logger.Warn("unknown ai provider, defaulting to openai",
			zap.String("provider", opts.Provider))
	}
	return NewOpenAI(opts, logger)
}
