package vector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/interfaces"
	"github.com/ternarybob/quaestor/internal/models"
)

// Searcher embeds a query and retrieves the most similar chunks from the
// vector index. A fresh call re-embeds and re-queries; nothing is cached.
type Searcher struct {
	llmService interfaces.LLMService
	index      interfaces.VectorIndex
	logger     arbor.ILogger
}

// NewSearcher creates a new vector searcher
func NewSearcher(llmService interfaces.LLMService, index interfaces.VectorIndex, logger arbor.ILogger) *Searcher {
	return &Searcher{
		llmService: llmService,
		index:      index,
		logger:     logger,
	}
}

// Search embeds the query and returns the top-k chunks ordered by
// descending similarity. A stable sort preserves the index's insertion
// order for equal scores.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	startTime := time.Now()

	vector, err := s.llmService.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	chunks, err := s.index.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	s.logger.Debug().
		Int("k", k).
		Int("results", len(chunks)).
		Dur("duration", time.Since(startTime)).
		Msg("Vector search completed")

	return chunks, nil
}
