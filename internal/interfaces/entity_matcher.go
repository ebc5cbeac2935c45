package interfaces

import (
	"context"

	"github.com/ternarybob/quaestor/internal/models"
)

// EntityMatcher recognizes graph entities mentioned in free text. The
// default implementation is a case-insensitive substring match against known
// node names; it is an interface so a fuzzy matcher can be swapped in
// without touching pipeline logic.
type EntityMatcher interface {
	Match(ctx context.Context, text string) ([]models.Entity, error)
}
