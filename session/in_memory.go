package session

import (
	"sync"

	"github.com/coderlang-ai/coderlang/core"
)

// InMemoryStore keeps sessions in a process-local map. It backs tests and
// the "memory" session backend; nothing survives a restart. Reads hand out
// clones so callers cannot mutate store internals.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Get returns a clone of the session, creating it on first access.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Clone(), nil
	}

	return s.create(sessionID).Clone(), nil
}

// SaveSession stores a snapshot of the given session.
//
// Deprecated: retained temporarily for tests that still invoke SaveSession directly.
func (s *InMemoryStore) SaveSession(sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess.Clone()

	return nil
}

// Create makes a fresh session under the given id, replacing any existing one.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.create(sessionID).Clone(), nil
}

// AppendEvent records an event on the session, creating it if needed.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = s.create(sessionID)
	}

	sess.AddEvent(ev)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = s.create(sessionID)
	}

	sess.ApplyStateDelta(delta)

	return nil
}

// create allocates and registers a session; callers hold the write lock.
func (s *InMemoryStore) create(sessionID string) *core.Session {
	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess

	return sess
}
