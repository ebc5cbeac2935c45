package interfaces

import (
	"github.com/ternarybob/quaestor/internal/models"
)

// SessionStore holds short-lived per-conversation state. Sessions are
// evicted after a configured idle TTL and do not survive process restart.
// Append for a single session ID is serialized by the store: two in-flight
// requests can never interleave an append.
type SessionStore interface {
	// Get returns the session, or models.ErrSessionNotFound when the ID is
	// unknown or the session has expired.
	Get(id string) (*models.Session, error)

	// Append adds a completed turn to the session, creating it when absent,
	// and returns the updated session.
	Append(id string, turn models.Turn) (*models.Session, error)

	// SaveTrace stores the last retrieval trace on the session for the
	// trace endpoint. Creates the session when absent.
	SaveTrace(id string, steps []models.RetrievalStep) error

	// Sweep drops expired sessions. Called periodically; Get already treats
	// expired sessions as absent, so Sweep only reclaims memory.
	Sweep() error

	// Close tears the store down.
	Close() error
}
