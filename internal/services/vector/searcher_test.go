package vector

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

type mockEmbedder struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFunc != nil {
		return m.embedFunc(ctx, text)
	}
	return []float32{0.1, 0.2}, nil
}

func (m *mockEmbedder) Complete(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockEmbedder) HealthCheck(ctx context.Context) error { return nil }
func (m *mockEmbedder) Close() error                          { return nil }

type mockIndex struct {
	searchFunc func(ctx context.Context, vector []float32, k int) ([]models.Chunk, error)
}

func (m *mockIndex) Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, vector, k)
	}
	return nil, nil
}

func (m *mockIndex) HealthCheck(ctx context.Context) error { return nil }

func TestSearcher_OrdersByScore(t *testing.T) {
	index := &mockIndex{
		searchFunc: func(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
			return []models.Chunk{
				{ID: "low", Score: 0.3},
				{ID: "high", Score: 0.9},
				{ID: "tie-a", Score: 0.5},
				{ID: "tie-b", Score: 0.5},
			}, nil
		},
	}
	searcher := NewSearcher(&mockEmbedder{}, index, common.GetLogger())

	chunks, err := searcher.Search(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, "high", chunks[0].ID)
	// Equal scores keep the index's ordering.
	assert.Equal(t, "tie-a", chunks[1].ID)
	assert.Equal(t, "tie-b", chunks[2].ID)
	assert.Equal(t, "low", chunks[3].ID)
}

func TestSearcher_EmbedFailure(t *testing.T) {
	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("provider down")
		},
	}
	searcher := NewSearcher(embedder, &mockIndex{}, common.GetLogger())

	_, err := searcher.Search(context.Background(), "query", 10)
	require.Error(t, err)
}

func TestSearcher_IndexFailurePropagates(t *testing.T) {
	index := &mockIndex{
		searchFunc: func(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
			return nil, errors.New("index down")
		},
	}
	searcher := NewSearcher(&mockEmbedder{}, index, common.GetLogger())

	_, err := searcher.Search(context.Background(), "query", 10)
	require.Error(t, err)
}
