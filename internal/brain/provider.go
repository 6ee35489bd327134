package brain

import (
	"context"
)

// Provider is the interface for AI providers
type Provider interface {
	// Name returns the provider name (e.g., "claude", "openai")
	Name() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Generate sends a prompt and returns the free-text response
	Generate(ctx context.Context, req Request) (Response, error)
}

// StructuredProvider is implemented by providers that can honor a strict
// JSON response contract (OpenAI JSON mode, Gemini JSON MIME type, Ollama
// format=json). Callers check for this capability once at construction
// time, not per call; providers without it get the plain Generate path
// and lenient response parsing.
type StructuredProvider interface {
	Provider

	// GenerateJSON sends a prompt and returns a JSON document string
	GenerateJSON(ctx context.Context, req Request) (string, error)
}

// Request is a prompt request to an AI provider
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Response is the AI provider's response
type Response struct {
	Content string
	Model   string
}
