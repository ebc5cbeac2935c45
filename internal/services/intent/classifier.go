package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/interfaces"
	"github.com/ternarybob/quaestor/internal/models"
)

const classifierPrompt = `You are an intent classifier for an oil & gas maintenance knowledge base.

Classify queries into one of these intents:

1. procedure: How-to questions, step-by-step instructions
   Examples: "How do I replace a bearing?", "What's the procedure for valve isolation?"

2. troubleshooting: Problem diagnosis, failure analysis
   Examples: "Pump is overheating, what's wrong?", "Why is the valve leaking?"

3. safety: PPE, hazards, safety procedures
   Examples: "What PPE is required?", "Is this chemical hazardous?"

4. asset_info: Equipment specifications, asset details
   Examples: "What type of pump is P-101?", "Where is valve V-201 located?"

5. people: Responsibilities, who to contact
   Examples: "Who maintains pump P-101?", "Who is the safety officer?"

Respond with JSON:
{
  "intent": "procedure|troubleshooting|safety|asset_info|people",
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation"
}`

// defaultConfidence is used when the model omits confidence or returns a
// non-numeric or out-of-range value.
const defaultConfidence = 0.5

// Classifier maps a query onto the fixed intent taxonomy using a structured
// LLM completion. Classification failures are returned as
// models.ErrClassification; the orchestrator recovers with the default
// intent rather than aborting the pipeline.
type Classifier struct {
	llmService interfaces.LLMService
	logger     arbor.ILogger
}

// NewClassifier creates a new intent classifier
func NewClassifier(llmService interfaces.LLMService, logger arbor.ILogger) *Classifier {
	return &Classifier{
		llmService: llmService,
		logger:     logger,
	}
}

type classifierResponse struct {
	Intent     string   `json:"intent"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// Classify returns the query's intent with a confidence in [0,1].
func (c *Classifier) Classify(ctx context.Context, query string) (models.Classification, error) {
	startTime := time.Now()

	messages := []interfaces.Message{
		{Role: "system", Content: classifierPrompt},
		{Role: "user", Content: "Classify this query:\n\n" + query},
	}

	raw, err := c.llmService.Complete(ctx, messages, interfaces.CompletionOptions{
		JSONResponse: true,
		MaxTokens:    200,
	})
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: %v", models.ErrClassification, err)
	}

	var parsed classifierResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		c.logger.Warn().Err(err).Str("response", truncate(raw, 200)).Msg("Unparsable classification response")
		return models.Classification{}, fmt.Errorf("%w: unparsable response: %v", models.ErrClassification, err)
	}

	intentValue := models.Intent(strings.ToLower(strings.TrimSpace(parsed.Intent)))
	if !intentValue.IsValid() {
		c.logger.Warn().Str("intent", parsed.Intent).Msg("Out-of-taxonomy intent label")
		return models.Classification{}, fmt.Errorf("%w: out-of-taxonomy label %q", models.ErrClassification, parsed.Intent)
	}

	confidence := defaultConfidence
	if parsed.Confidence != nil && *parsed.Confidence >= 0 && *parsed.Confidence <= 1 {
		confidence = *parsed.Confidence
	}

	classification := models.Classification{
		Intent:     intentValue,
		Confidence: confidence,
		Reasoning:  parsed.Reasoning,
	}

	c.logger.Debug().
		Str("intent", string(classification.Intent)).
		Float64("confidence", classification.Confidence).
		Dur("duration", time.Since(startTime)).
		Msg("Query classified")

	return classification, nil
}

// stripFences removes markdown code fences some models wrap around JSON.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
