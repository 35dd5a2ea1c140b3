package memory

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/coderlang-ai/coderlang/core"
)

// ErrMemoryNotFound reports a Delete against a missing entry.
var ErrMemoryNotFound = errors.New("memory not found")

// StoredMemory is one retrievable entry held by InMemoryStore. It mirrors
// core.SearchResult minus the score, which is constant here.
type StoredMemory struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// InMemoryStore is the process-local MemoryStore used by tests and demos.
// It keeps two maps per session: key/value working memory (Get/Put) and
// append-only stored entries (Store/Search/Delete). Search is a linear
// case-sensitive substring scan scoring every hit 1.0; real retrieval
// belongs to FileStore or an external index.
type InMemoryStore struct {
	mu      sync.RWMutex
	memory  map[string]map[string]any
	storage map[string]map[string]StoredMemory
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memory:  make(map[string]map[string]any),
		storage: make(map[string]map[string]StoredMemory),
	}
}

// Get returns a shallow copy of the session's key/value memory.
func (m *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessionMemory := m.memory[sessionID]

	result := make(map[string]any, len(sessionMemory))
	for k, v := range sessionMemory {
		result[k] = v
	}

	return result, nil
}

// Put merges delta into the session's key/value memory.
func (m *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.memory[sessionID]; !exists {
		m.memory[sessionID] = make(map[string]any)
	}

	for k, v := range delta {
		m.memory[sessionID][k] = v
	}

	return nil
}

// Search returns up to limit stored entries whose content contains query.
// An empty query matches everything. Order is unspecified.
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]core.SearchResult, 0, limit)

	for _, stored := range m.storage[sessionID] {
		if len(results) >= limit {
			break
		}

		if query != "" && !strings.Contains(stored.Content, query) {
			continue
		}

		md := make(map[string]interface{}, len(stored.Metadata))
		for k, v := range stored.Metadata {
			md[k] = v
		}

		results = append(results, core.SearchResult{
			ID:       stored.ID,
			Content:  stored.Content,
			Score:    1.0,
			Metadata: md,
		})
	}

	return results, nil
}

// Store appends a new entry under a sequential id.
func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.storage[sessionID]; !exists {
		m.storage[sessionID] = make(map[string]StoredMemory)
	}

	memoryID := fmt.Sprintf("mem_%d", len(m.storage[sessionID]))
	m.storage[sessionID][memoryID] = StoredMemory{ID: memoryID, Content: content, Metadata: metadata}

	return nil
}

// Delete removes a stored entry by id.
func (m *InMemoryStore) Delete(sessionID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionStorage, exists := m.storage[sessionID]
	if !exists {
		return ErrMemoryNotFound
	}

	if _, exists := sessionStorage[memoryID]; !exists {
		return ErrMemoryNotFound
	}

	delete(sessionStorage, memoryID)

	return nil
}
