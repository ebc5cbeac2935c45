package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/interfaces"
	"github.com/ternarybob/quaestor/internal/models"
)

// catalogRefresh is how long the known-entity catalog is reused before being
// re-fetched from the graph.
const catalogRefresh = 5 * time.Minute

// SubstringMatcher recognizes entity mentions through case-insensitive
// substring matching against the graph's known node names. Matching is
// best-effort: an empty result is a valid outcome, not an error. The matcher
// sits behind interfaces.EntityMatcher so a fuzzy implementation can replace
// it without touching pipeline logic.
type SubstringMatcher struct {
	store  interfaces.GraphStore
	logger arbor.ILogger

	mu        sync.Mutex
	catalog   []models.Entity
	fetchedAt time.Time
}

// NewSubstringMatcher creates a new substring entity matcher
func NewSubstringMatcher(store interfaces.GraphStore, logger arbor.ILogger) *SubstringMatcher {
	return &SubstringMatcher{
		store:  store,
		logger: logger,
	}
}

// Match returns the known entities mentioned in the text, ordered by first
// occurrence and then by name so results are deterministic for a given
// (text, catalog) pair.
func (m *SubstringMatcher) Match(ctx context.Context, text string) ([]models.Entity, error) {
	catalog, err := m.entities(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)

	type positioned struct {
		entity models.Entity
		index  int
	}

	var matches []positioned
	seen := make(map[string]bool)
	for _, entity := range catalog {
		name := strings.ToLower(entity.Name)
		if name == "" {
			continue
		}
		idx := strings.Index(lower, name)
		if idx < 0 {
			continue
		}
		key := string(entity.Type) + ":" + name
		if seen[key] {
			continue
		}
		seen[key] = true
		matches = append(matches, positioned{entity: entity, index: idx})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].index != matches[j].index {
			return matches[i].index < matches[j].index
		}
		return matches[i].entity.Name < matches[j].entity.Name
	})

	result := make([]models.Entity, 0, len(matches))
	for _, match := range matches {
		result = append(result, match.entity)
	}

	m.logger.Debug().
		Int("catalog_size", len(catalog)).
		Int("matches", len(result)).
		Msg("Entity matching completed")

	return result, nil
}

// entities returns the cached entity catalog, refreshing it when stale.
func (m *SubstringMatcher) entities(ctx context.Context) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.catalog != nil && time.Since(m.fetchedAt) < catalogRefresh {
		return m.catalog, nil
	}

	catalog, err := m.store.KnownEntities(ctx)
	if err != nil {
		// Serve the stale catalog if we have one; mention recognition is
		// best-effort and should not fail the pipeline on a refresh miss.
		if m.catalog != nil {
			m.logger.Warn().Err(err).Msg("Entity catalog refresh failed, using stale catalog")
			return m.catalog, nil
		}
		return nil, err
	}

	m.catalog = catalog
	m.fetchedAt = time.Now()
	return catalog, nil
}
