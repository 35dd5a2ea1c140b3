package artifact

import "sync"

// InMemoryStore holds artifacts in a sessionID -> artifactID -> bytes map
// behind an RWMutex. Saves and reads copy the byte slices, so callers can
// never alias store internals. There is no eviction or size limit; this is
// for tests and single-process use.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string][]byte
}

// NewInMemoryStore returns an empty artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[string][]byte)}
}

// Save stores a copy of data under the session and artifact id, replacing
// any previous version.
func (a *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.artifacts[sessionID]; !exists {
		a.artifacts[sessionID] = make(map[string][]byte)
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	a.artifacts[sessionID][artifactID] = cp

	return nil
}

// Get returns a copy of the artifact bytes, or ErrNotFound.
func (a *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.artifacts[sessionID][artifactID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	return cp, nil
}

// List returns a snapshot of the artifact ids stored for the session.
func (a *InMemoryStore) List(sessionID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m := a.artifacts[sessionID]

	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}

	return ids, nil
}

// Delete removes the artifact, or returns ErrNotFound if it is absent.
func (a *InMemoryStore) Delete(sessionID, artifactID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.artifacts[sessionID]
	if !ok {
		return ErrNotFound
	}

	if _, ok := m[artifactID]; !ok {
		return ErrNotFound
	}

	delete(m, artifactID)

	return nil
}
