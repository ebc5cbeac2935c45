package status

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

type mockLLM struct {
	healthFunc func(ctx context.Context) error
}

func (m *mockLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}

func (m *mockLLM) Complete(ctx context.Context, messages []interfaces.Message, opts interfaces.CompletionOptions) (string, error) {
	return "", nil
}

func (m *mockLLM) HealthCheck(ctx context.Context) error {
	if m.healthFunc != nil {
		return m.healthFunc(ctx)
	}
	return nil
}

func (m *mockLLM) Close() error { return nil }

type mockIndex struct {
	healthFunc func(ctx context.Context) error
}

func (m *mockIndex) Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	return nil, nil
}

func (m *mockIndex) HealthCheck(ctx context.Context) error {
	if m.healthFunc != nil {
		return m.healthFunc(ctx)
	}
	return nil
}

type mockGraph struct {
	healthFunc func(ctx context.Context) error
}

func (m *mockGraph) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}

func (m *mockGraph) KnownEntities(ctx context.Context) ([]models.Entity, error) {
	return nil, nil
}

func (m *mockGraph) HealthCheck(ctx context.Context) error {
	if m.healthFunc != nil {
		return m.healthFunc(ctx)
	}
	return nil
}

func (m *mockGraph) Close(ctx context.Context) error { return nil }

func TestCheck_AllHealthy(t *testing.T) {
	service := NewService(&mockLLM{}, &mockIndex{}, &mockGraph{}, common.GetLogger())

	report := service.Check(context.Background())

	assert.True(t, report.Ready)
	require.Len(t, report.Dependencies, 3)
	for _, dep := range report.Dependencies {
		assert.True(t, dep.Healthy, dep.Name)
		assert.Empty(t, dep.Error)
	}
}

func TestCheck_OneDependencyDown(t *testing.T) {
	graph := &mockGraph{
		healthFunc: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	}
	service := NewService(&mockLLM{}, &mockIndex{}, graph, common.GetLogger())

	report := service.Check(context.Background())

	assert.False(t, report.Ready)

	byName := make(map[string]DependencyStatus)
	for _, dep := range report.Dependencies {
		byName[dep.Name] = dep
	}
	assert.True(t, byName["llm"].Healthy)
	assert.True(t, byName["vector_index"].Healthy)
	assert.False(t, byName["graph"].Healthy)
	assert.Equal(t, "connection refused", byName["graph"].Error)
}

func TestCheck_AllDependenciesDown(t *testing.T) {
	down := func(ctx context.Context) error { return errors.New("unreachable") }
	service := NewService(
		&mockLLM{healthFunc: down},
		&mockIndex{healthFunc: down},
		&mockGraph{healthFunc: down},
		common.GetLogger(),
	)

	report := service.Check(context.Background())

	assert.False(t, report.Ready)
	for _, dep := range report.Dependencies {
		assert.False(t, dep.Healthy, dep.Name)
		assert.Equal(t, "unreachable", dep.Error)
	}
}

func TestCheck_ProbesReceiveDeadline(t *testing.T) {
	llm := &mockLLM{
		healthFunc: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		},
	}
	service := NewService(llm, &mockIndex{}, &mockGraph{}, common.GetLogger())

	report := service.Check(context.Background())
	assert.True(t, report.Ready)
}
