package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/interfaces"
	"github.com/ternarybob/quaestor/internal/models"
)

// mockLLMService implements interfaces.LLMService for testing
type mockLLMService struct {
	completeFunc func(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error)
}

func (m *mockLLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (m *mockLLMService) Complete(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, messages, opts)
	}
	return "", nil
}

func (m *mockLLMService) HealthCheck(ctx context.Context) error { return nil }
func (m *mockLLMService) Close() error                          { return nil }

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		wantIntent     models.Intent
		wantConfidence float64
	}{
		{
			name:           "people intent",
			response:       `{"intent": "people", "confidence": 0.92, "reasoning": "asks who is responsible"}`,
			wantIntent:     models.IntentPeople,
			wantConfidence: 0.92,
		},
		{
			name:           "procedure intent",
			response:       `{"intent": "procedure", "confidence": 0.85, "reasoning": "how-to question"}`,
			wantIntent:     models.IntentProcedure,
			wantConfidence: 0.85,
		},
		{
			name:           "uppercase label is normalized",
			response:       `{"intent": "Safety", "confidence": 0.8}`,
			wantIntent:     models.IntentSafety,
			wantConfidence: 0.8,
		},
		{
			name:           "missing confidence gets default",
			response:       `{"intent": "asset_info", "reasoning": "equipment question"}`,
			wantIntent:     models.IntentAssetInfo,
			wantConfidence: 0.5,
		},
		{
			name:           "out-of-range confidence gets default",
			response:       `{"intent": "troubleshooting", "confidence": 1.7}`,
			wantIntent:     models.IntentTroubleshooting,
			wantConfidence: 0.5,
		},
		{
			name:           "fenced JSON is accepted",
			response:       "```json\n{\"intent\": \"people\", \"confidence\": 0.9}\n```",
			wantIntent:     models.IntentPeople,
			wantConfidence: 0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockLLMService{
				completeFunc: func(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
					assert.True(t, opts.JSONResponse)
					return tt.response, nil
				},
			}
			classifier := NewClassifier(mock, common.GetLogger())

			classification, err := classifier.Classify(context.Background(), "Who maintains pump P-101?")
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntent, classification.Intent)
			assert.InDelta(t, tt.wantConfidence, classification.Confidence, 1e-9)
		})
	}
}

func TestClassifier_Classify_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{
			name: "provider error",
			err:  errors.New("connection refused"),
		},
		{
			name:     "unparsable response",
			response: "the intent is probably people",
		},
		{
			name:     "out-of-taxonomy label",
			response: `{"intent": "chitchat", "confidence": 0.9}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockLLMService{
				completeFunc: func(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
					return tt.response, tt.err
				},
			}
			classifier := NewClassifier(mock, common.GetLogger())

			_, err := classifier.Classify(context.Background(), "Who maintains pump P-101?")
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrClassification)
		})
	}
}
