package interfaces

import (
	"context"

	"github.com/ternarybob/quaestor/internal/models"
)

// VectorIndex is the query capability consumed from the vector database.
// Results come back ordered by descending similarity; ties are broken by
// insertion order (the index's stable ordering).
type VectorIndex interface {
	// Search returns the top-k nearest chunks for the query vector.
	// Returns models.ErrIndexUnavailable (wrapped) when the index cannot
	// be reached.
	Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error)

	// HealthCheck verifies connectivity to the index.
	HealthCheck(ctx context.Context) error
}

// VectorSearcher embeds a query and retrieves similar chunks. This is the
// pipeline-facing contract; a fresh call re-embeds and re-queries.
type VectorSearcher interface {
	Search(ctx context.Context, query string, k int) ([]models.Chunk, error)
}
