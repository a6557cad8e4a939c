package storage

import (
	"sync"

	"github.com/itiky/optimistic-sync/model"
)

// Store keeps the authoritative sessions keyed by id. Sessions are created
// lazily on first reference.
type Store struct {
	sync.RWMutex
	sessions map[model.SessionId]*Session
}

// GetOrCreate returns the session, creating it on first reference.
func (s *Store) GetOrCreate(id model.SessionId) (*Session, error) {
	s.RLock()
	session := s.sessions[id]
	s.RUnlock()
	if session != nil {
		return session, nil
	}

	s.Lock()
	defer s.Unlock()

	if session = s.sessions[id]; session == nil {
		created, err := NewSession(id)
		if err != nil {
			return nil, err
		}
		session = created
		s.sessions[id] = session
	}

	return session, nil
}

// Ids returns the known session ids.
func (s *Store) Ids() []model.SessionId {
	s.RLock()
	defer s.RUnlock()

	ids := make([]model.SessionId, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}

	return ids
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	s.RLock()
	defer s.RUnlock()

	return len(s.sessions)
}

// NewStore creates a new empty Store object.
func NewStore() *Store {
	return &Store{
		sessions: make(map[model.SessionId]*Session),
	}
}
