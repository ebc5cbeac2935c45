package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/interfaces"
)

// ClaudeService implements the completion half of the LLMService interface
// using the Anthropic API. Claude has no embedding endpoint, so Embed always
// fails; the factory pairs this service with a Gemini embedder.
type ClaudeService struct {
	config    *common.LLMConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// convertMessagesToClaude converts []interfaces.Message to Claude
// MessageParam format. System messages are extracted separately for the
// System parameter.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, systemText, nil
}

// NewClaudeService creates a new Claude LLM service instance.
func NewClaudeService(config *common.Config, logger arbor.ILogger) (*ClaudeService, error) {
	if config.LLM.AnthropicKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for the Claude provider (set ANTHROPIC_API_KEY or llm.anthropic_key in config)")
	}

	if config.LLM.ChatModel == "" {
		config.LLM.ChatModel = "claude-sonnet-4-20250514"
	}

	maxTokens := config.LLM.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.LLM.AnthropicKey),
	)

	service := &ClaudeService{
		config:    &config.LLM,
		logger:    logger,
		client:    client,
		timeout:   config.LLMTimeout(),
		maxTokens: maxTokens,
	}

	logger.Info().
		Str("chat_model", config.LLM.ChatModel).
		Dur("timeout", service.timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service initialized")

	return service, nil
}

// Embed is not supported by the Anthropic API.
func (s *ClaudeService) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("claude provider does not support embeddings")
}

// Complete generates a completion for the conversation. Claude has no JSON
// response mode, so structured output is requested through the system prompt.
func (s *ClaudeService) Complete(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	if opts.JSONResponse {
		jsonInstruction := "Respond with a single JSON object only, no prose and no code fences."
		if systemText == "" {
			systemText = jsonInstruction
		} else {
			systemText = systemText + "\n\n" + jsonInstruction
		}
	}

	maxTokens := s.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.ChatModel),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}

	temperature := s.config.Temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(float64(temperature))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	startTime := time.Now()
	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Error().Err(err).Int("message_count", len(messages)).Msg("Claude completion failed")
		return "", fmt.Errorf("completion failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Claude completion finished")

	return response.String(), nil
}

// HealthCheck verifies the Claude client is initialized.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if s.config.AnthropicKey == "" {
		return fmt.Errorf("claude client is not initialized")
	}
	return nil
}

// Close releases client resources.
func (s *ClaudeService) Close() error {
	s.logger.Debug().Msg("Closing Claude LLM service")
	return nil
}
