package rerank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

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
	return `{"score": 0.5}`, nil
}

func (m *mockLLMService) HealthCheck(ctx context.Context) error { return nil }
func (m *mockLLMService) Close() error                          { return nil }

func scoreByContent(scores map[string]float64) *mockLLMService {
	return &mockLLMService{
		completeFunc: func(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
			content := messages[len(messages)-1].Content
			for key, score := range scores {
				if strings.Contains(content, key) {
					return fmt.Sprintf(`{"score": %.2f, "reasoning": "match"}`, score), nil
				}
			}
			return `{"score": 0.1}`, nil
		},
	}
}

func testConfig() *common.Config {
	config := common.NewDefaultConfig()
	config.LLM.ScoreRateLimit = 0 // unlimited in tests
	return config
}

func TestReranker_BlendsChunkScores(t *testing.T) {
	config := testConfig()
	mock := scoreByContent(map[string]float64{"bearing": 0.9})
	reranker := NewReranker(mock, config, common.GetLogger())

	chunks := []models.Chunk{
		{ID: "c1", Text: "Replace the bearing on pump P-101", Score: 0.8},
	}

	evidence, err := reranker.Rerank(context.Background(), "bearing replacement", chunks, nil)
	require.NoError(t, err)
	require.Len(t, evidence, 1)

	// 0.4*0.8 + 0.6*0.9 with the default blend
	blend := config.Retrieval.RerankVectorBlend
	assert.InDelta(t, blend*0.8+(1-blend)*0.9, evidence[0].Score, 1e-9)
	assert.Equal(t, models.ProvenanceDocument, evidence[0].Provenance)
}

func TestReranker_NeverDropsItems(t *testing.T) {
	mock := &mockLLMService{
		completeFunc: func(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
			return "", errors.New("rate limited")
		},
	}
	config := testConfig()
	reranker := NewReranker(mock, config, common.GetLogger())

	chunks := []models.Chunk{
		{ID: "c1", Text: "chunk one", Score: 0.7},
		{ID: "c2", Text: "chunk two", Score: 0.6},
	}
	facts := []models.GraphFact{
		{Fact: "P-101 is located at Platform Alpha", Hops: 1},
	}

	evidence, err := reranker.Rerank(context.Background(), "anything", chunks, facts)
	require.NoError(t, err)
	require.Len(t, evidence, 3, "scoring failure must not shrink the evidence set")

	// Unscored items fall back: chunks to their similarity, facts to the
	// graph baseline.
	byText := map[string]models.ScoredEvidence{}
	for _, item := range evidence {
		byText[item.Text()] = item
	}
	assert.InDelta(t, 0.7, byText["chunk one"].Score, 1e-9)
	assert.InDelta(t, 0.6, byText["chunk two"].Score, 1e-9)
	assert.InDelta(t, config.Retrieval.GraphBaseline, byText["P-101 is located at Platform Alpha"].Score, 1e-9)
}

func TestReranker_TieBreaksGraphFirst(t *testing.T) {
	mock := &mockLLMService{
		completeFunc: func(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
			return "", errors.New("scorer down")
		},
	}
	config := testConfig()
	config.Retrieval.GraphBaseline = 0.7
	reranker := NewReranker(mock, config, common.GetLogger())

	chunks := []models.Chunk{{ID: "c1", Text: "document text", Score: 0.7}}
	facts := []models.GraphFact{{Fact: "graph fact", Hops: 1}}

	evidence, err := reranker.Rerank(context.Background(), "q", chunks, facts)
	require.NoError(t, err)
	require.Len(t, evidence, 2)
	assert.Equal(t, models.ProvenanceGraph, evidence[0].Provenance)
	assert.Equal(t, models.ProvenanceDocument, evidence[1].Provenance)
}

func TestReranker_OrdersByScore(t *testing.T) {
	mock := scoreByContent(map[string]float64{
		"highly relevant": 0.95,
		"barely related":  0.05,
	})
	config := testConfig()
	reranker := NewReranker(mock, config, common.GetLogger())

	chunks := []models.Chunk{
		{ID: "c1", Text: "barely related text", Score: 0.5},
		{ID: "c2", Text: "highly relevant text", Score: 0.5},
	}

	evidence, err := reranker.Rerank(context.Background(), "q", chunks, nil)
	require.NoError(t, err)
	require.Len(t, evidence, 2)
	assert.Equal(t, "highly relevant text", evidence[0].Text())
	assert.Greater(t, evidence[0].Score, evidence[1].Score)
}

func TestReranker_EmptyInput(t *testing.T) {
	reranker := NewReranker(&mockLLMService{}, testConfig(), common.GetLogger())

	evidence, err := reranker.Rerank(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, evidence)
}

func TestReranker_TopKCap(t *testing.T) {
	config := testConfig()
	config.Retrieval.RerankTopK = 2
	reranker := NewReranker(&mockLLMService{}, config, common.GetLogger())

	chunks := []models.Chunk{
		{ID: "c1", Text: "one", Score: 0.9},
		{ID: "c2", Text: "two", Score: 0.8},
		{ID: "c3", Text: "three", Score: 0.7},
	}

	evidence, err := reranker.Rerank(context.Background(), "q", chunks, nil)
	require.NoError(t, err)
	assert.Len(t, evidence, 2)
}

func TestReranker_ScoringSnippetKeepsRunesIntact(t *testing.T) {
	var sent string
	mock := &mockLLMService{
		completeFunc: func(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
			sent = messages[len(messages)-1].Content
			return `{"score": 0.5}`, nil
		},
	}
	reranker := NewReranker(mock, testConfig(), common.GetLogger())

	// Lay a multi-byte rune across the 500-byte snippet boundary.
	text := strings.Repeat("a", 499) + "über Druckprüfung"
	chunks := []models.Chunk{{ID: "c1", Text: text, Score: 0.9}}

	_, err := reranker.Rerank(context.Background(), "q", chunks, nil)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(sent))
}

func TestReranker_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &mockLLMService{
		completeFunc: func(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
			return "", ctx.Err()
		},
	}
	reranker := NewReranker(mock, testConfig(), common.GetLogger())

	chunks := []models.Chunk{{ID: "c1", Text: "one", Score: 0.9}}
	_, err := reranker.Rerank(ctx, "q", chunks, nil)
	require.Error(t, err)
}
