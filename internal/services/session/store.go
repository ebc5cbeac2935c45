package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/common"
	"github.com/ternarybob/quaestor/internal/models"
)

const maxTurns = 20

// Store keeps conversation sessions in an in-memory badger instance with a
// sliding TTL. Appends to the same session are serialized; reads and appends
// to different sessions proceed concurrently.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	locks  sync.Map
	logger arbor.ILogger
}

// NewStore creates a new in-memory session store
func NewStore(config *common.Config, logger arbor.ILogger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	return &Store{
		db:     db,
		ttl:    config.SessionTTL(),
		logger: logger,
	}, nil
}

func sessionKey(id string) []byte {
	return []byte("session:" + id)
}

// Get returns the session by ID, or ErrSessionNotFound when the session does
// not exist or has been idle longer than the TTL. An expired hit is deleted
// on the spot.
func (s *Store) Get(id string) (*models.Session, error) {
	var session models.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	if time.Since(session.LastAccess) > s.ttl {
		s.delete(id)
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}

	return &session, nil
}

// Append adds a turn to the session, creating it when absent or expired,
// and returns the updated session. The session's idle clock restarts on
// every append.
func (s *Store) Append(id string, turn models.Turn) (*models.Session, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.Get(id)
	if err != nil {
		now := time.Now()
		session = &models.Session{ID: id, CreatedAt: now}
	}

	session.Turns = append(session.Turns, turn)
	if len(session.Turns) > maxTurns {
		session.Turns = session.Turns[len(session.Turns)-maxTurns:]
	}
	session.LastAccess = time.Now()

	if err := s.save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// SaveTrace stores the retrieval trace of the session's latest request.
func (s *Store) SaveTrace(id string, steps []models.RetrievalStep) error {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.Get(id)
	if err != nil {
		now := time.Now()
		session = &models.Session{ID: id, CreatedAt: now}
	}

	session.LastTrace = steps
	session.LastAccess = time.Now()

	return s.save(session)
}

// Sweep drops sessions that have exceeded the idle TTL. Badger's own entry
// TTL acts as a backstop; the sweep reclaims memory ahead of it.
func (s *Store) Sweep() error {
	expired := make([]string, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var session models.Session
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			}); err != nil {
				continue
			}
			if time.Since(session.LastAccess) > s.ttl {
				expired = append(expired, session.ID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session sweep scan failed: %w", err)
	}

	// The per-session mutexes stay put: dropping one while an in-flight
	// append holds it would let a second request mint a new mutex for the
	// same ID and break append serialization.
	for _, id := range expired {
		s.delete(id)
	}

	if len(expired) > 0 {
		s.logger.Debug().Int("expired", len(expired)).Msg("Session sweep completed")
	}
	return nil
}

// Close shuts down the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) sessionLock(id string) *sync.Mutex {
	val, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return val.(*sync.Mutex)
}

func (s *Store) save(session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	// Badger rounds entry TTLs to whole seconds, so a sub-second backstop
	// would expire entries the moment they are written.
	backstop := 2 * s.ttl
	if backstop < 2*time.Second {
		backstop = 2 * time.Second
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(sessionKey(session.ID), data).WithTTL(backstop)
		return txn.SetEntry(entry)
	})
}

func (s *Store) delete(id string) {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(id))
	}); err != nil && err != badger.ErrKeyNotFound {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to delete session")
	}
}
