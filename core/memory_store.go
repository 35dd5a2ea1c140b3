package core

// MemoryStore persists and recalls conversational memory. Get/Put move raw
// key/value tiers; Store/Search/Delete work on individual memory items.
// Search ranking is implementation-defined (keyword overlap in the file
// store).
type MemoryStore interface {
	Get(sessionID string) (map[string]any, error)
	Put(sessionID string, delta map[string]any) error
	Search(sessionID string, query string, limit int) ([]SearchResult, error)
	Store(sessionID string, content string, metadata map[string]any) error
	Delete(sessionID string, memoryID string) error
}
