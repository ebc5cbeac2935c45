package interfaces

import (
	"context"
)

// Message represents a single message in a completion conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// CompletionOptions controls a single completion call.
type CompletionOptions struct {
	// JSONResponse requests structured JSON output from the provider.
	// Classification and rerank scoring set this; generation does not.
	JSONResponse bool

	// Temperature for sampling. Zero means provider default.
	Temperature float32

	// MaxTokens caps the response length. Zero means provider default.
	MaxTokens int
}

// LLMService defines the capability interface for language model operations:
// embedding generation and text completion. Implementations may use Gemini
// or Claude; both are remote services, and every call must honor the context
// deadline so no pipeline stage can hang on a provider.
type LLMService interface {
	// Embed generates an embedding vector for the given text. The vector
	// dimension is fixed per provider configuration and must match the
	// vector index collection.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Complete generates a completion for the conversation. When
	// opts.JSONResponse is set the provider is asked for structured JSON
	// output; callers are still expected to validate what comes back.
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)

	// HealthCheck verifies the provider is reachable and authenticated.
	HealthCheck(ctx context.Context) error

	// Close releases client resources.
	Close() error
}
