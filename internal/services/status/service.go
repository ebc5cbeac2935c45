package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/interfaces"
)

const checkTimeout = 5 * time.Second

// DependencyStatus is one dependency's health in the readiness report.
type DependencyStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Report is the readiness response. Ready means every dependency passed;
// the pipeline still serves degraded answers when some are down, so a
// not-ready report describes reduced capability, not an outage.
type Report struct {
	Ready        bool               `json:"ready"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// Service probes the pipeline's remote dependencies.
type Service struct {
	llmService interfaces.LLMService
	index      interfaces.VectorIndex
	graph      interfaces.GraphStore
	logger     arbor.ILogger
}

// NewService creates a new status service
func NewService(llmService interfaces.LLMService, index interfaces.VectorIndex, graph interfaces.GraphStore, logger arbor.ILogger) *Service {
	return &Service{
		llmService: llmService,
		index:      index,
		graph:      graph,
		logger:     logger,
	}
}

// Check probes all dependencies concurrently and reports per-dependency
// health.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := []struct {
		name  string
		probe func(context.Context) error
	}{
		{"llm", s.llmService.HealthCheck},
		{"vector_index", s.index.HealthCheck},
		{"graph", s.graph.HealthCheck},
	}

	statuses := make([]DependencyStatus, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := DependencyStatus{Name: check.name, Healthy: true}
			if err := check.probe(ctx); err != nil {
				status.Healthy = false
				status.Error = err.Error()
			}
			statuses[i] = status
		}()
	}
	wg.Wait()

	report := Report{Ready: true, Dependencies: statuses}
	for _, status := range statuses {
		if !status.Healthy {
			report.Ready = false
			s.logger.Warn().Str("dependency", status.Name).Str("error", status.Error).Msg("Dependency unhealthy")
		}
	}

	return report
}
