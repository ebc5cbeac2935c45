package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/interfaces"
)

// NewLLMService creates the appropriate LLM service implementation based on
// configuration. The claude provider has no embedding endpoint, so it is
// paired with a Gemini embedder in a composite service; queries always have
// a working Embed capability either way.
func NewLLMService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	logger.Info().Str("provider", cfg.LLM.Provider).Msg("Initializing LLM service")

	switch cfg.LLM.Provider {
	case "gemini":
		return NewGeminiService(cfg, logger)

	case "claude":
		completer, err := NewClaudeService(cfg, logger)
		if err != nil {
			return nil, err
		}
		embedder, err := NewGeminiService(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("claude provider still needs a Gemini embedder: %w", err)
		}
		return &compositeService{embedder: embedder, completer: completer}, nil

	default:
		return nil, fmt.Errorf("invalid llm provider '%s': must be 'gemini' or 'claude'", cfg.LLM.Provider)
	}
}

// compositeService routes embeddings and completions to different providers.
type compositeService struct {
	embedder  interfaces.LLMService
	completer interfaces.LLMService
}

func (s *compositeService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.Embed(ctx, text)
}

func (s *compositeService) Complete(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
	return s.completer.Complete(ctx, messages, opts)
}

func (s *compositeService) HealthCheck(ctx context.Context) error {
	if err := s.embedder.HealthCheck(ctx); err != nil {
		return err
	}
	return s.completer.HealthCheck(ctx)
}

func (s *compositeService) Close() error {
	if err := s.embedder.Close(); err != nil {
		return err
	}
	return s.completer.Close()
}
