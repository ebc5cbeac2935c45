package interfaces

import (
	"context"

	"github.com/ternarybob/quaestor/internal/models"
)

// GraphStore is the cypher-query capability consumed from the graph
// database. Rows come back as flat column-name -> value maps.
type GraphStore interface {
	// Run executes a read query with parameters.
	// Returns models.ErrGraphUnavailable (wrapped) on connectivity failure.
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// KnownEntities returns the graph's node names keyed by entity type,
	// used by the entity matcher for mention recognition.
	KnownEntities(ctx context.Context) ([]models.Entity, error)

	// HealthCheck verifies connectivity to the graph database.
	HealthCheck(ctx context.Context) error

	// Close releases the driver.
	Close(ctx context.Context) error
}

// GraphExpander walks the multi-view graph with an intent-selected traversal
// template and returns structured facts. An empty fact list is a valid
// outcome, not an error.
type GraphExpander interface {
	Expand(ctx context.Context, intent models.Intent, query string, chunks []models.Chunk) ([]models.GraphFact, error)
}
