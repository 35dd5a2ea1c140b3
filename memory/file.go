package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/coderlang-ai/coderlang/core"
)

// LongTermPrefix marks a key/value delta entry as belonging to the persistent
// long-term tier instead of the session-scoped short-term tier.
const LongTermPrefix = "long:"

// FileStore is a two-tier persistent MemoryStore backed by JSON files:
//
//	short_term.json: session-scoped working context, keyed by session ID
//	long_term.json:  cross-session preferences, flat key/value
//	snippets.json:   stored memories backing Search
//
// Files are re-read on every operation and rewritten atomically (temp file +
// rename), so multiple processes sharing the directory see consistent data.
type FileStore struct {
	mu        sync.Mutex
	shortPath string
	longPath  string
	snipPath  string
}

// NewFileStore creates the memory directory and tier files if missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	fs := &FileStore{
		shortPath: filepath.Join(dir, "short_term.json"),
		longPath:  filepath.Join(dir, "long_term.json"),
		snipPath:  filepath.Join(dir, "snippets.json"),
	}

	for _, p := range []string{fs.shortPath, fs.longPath, fs.snipPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			if err := writeJSONAtomic(p, map[string]any{}); err != nil {
				return nil, err
			}
		}
	}

	return fs, nil
}

// Get returns the session's short-term map plus long-term entries addressed
// with the "long:" prefix.
func (fs *FileStore) Get(sessionID string) (map[string]any, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	short := loadTier[map[string]any](fs.shortPath)
	long := loadTier[any](fs.longPath)

	result := make(map[string]any)
	if sess, ok := short[sessionID]; ok {
		for k, v := range sess {
			result[k] = v
		}
	}
	for k, v := range long {
		result[LongTermPrefix+k] = v
	}
	return result, nil
}

// Put merges delta into the store. Keys carrying the "long:" prefix land in
// long_term.json (prefix stripped); all others go to the session's short-term
// map.
func (fs *FileStore) Put(sessionID string, delta map[string]any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	short := loadTier[map[string]any](fs.shortPath)
	long := loadTier[any](fs.longPath)

	shortDirty, longDirty := false, false
	for k, v := range delta {
		if strings.HasPrefix(k, LongTermPrefix) {
			long[strings.TrimPrefix(k, LongTermPrefix)] = v
			longDirty = true
			continue
		}
		if short[sessionID] == nil {
			short[sessionID] = map[string]any{}
		}
		short[sessionID][k] = v
		shortDirty = true
	}

	if shortDirty {
		if err := writeJSONAtomic(fs.shortPath, short); err != nil {
			return err
		}
	}
	if longDirty {
		if err := writeJSONAtomic(fs.longPath, long); err != nil {
			return err
		}
	}
	return nil
}

// Store appends a searchable memory snippet for the session.
func (fs *FileStore) Store(sessionID, content string, metadata map[string]any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	snips := loadTier[[]StoredMemory](fs.snipPath)
	snips[sessionID] = append(snips[sessionID], StoredMemory{
		ID:       uuid.NewString(),
		Content:  content,
		Metadata: metadata,
	})
	return writeJSONAtomic(fs.snipPath, snips)
}

// Search performs a case-insensitive substring scan over the session's
// stored snippets.
func (fs *FileStore) Search(sessionID, query string, limit int) ([]core.SearchResult, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	snips := loadTier[[]StoredMemory](fs.snipPath)
	needle := strings.ToLower(query)

	results := make([]core.SearchResult, 0)
	for _, sm := range snips[sessionID] {
		if limit > 0 && len(results) >= limit {
			break
		}
		if query == "" || strings.Contains(strings.ToLower(sm.Content), needle) {
			results = append(results, core.SearchResult{
				ID:       sm.ID,
				Content:  sm.Content,
				Score:    1.0,
				Metadata: sm.Metadata,
			})
		}
	}
	return results, nil
}

// Delete removes a stored snippet by ID.
func (fs *FileStore) Delete(sessionID, memoryID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	snips := loadTier[[]StoredMemory](fs.snipPath)
	list := snips[sessionID]
	for i, sm := range list {
		if sm.ID == memoryID {
			snips[sessionID] = append(list[:i], list[i+1:]...)
			return writeJSONAtomic(fs.snipPath, snips)
		}
	}
	return fmt.Errorf("memory %s not found", memoryID)
}

// Context renders both tiers into the prompt-context block injected ahead of
// worker instructions. Keys are sorted for stable output.
func (fs *FileStore) Context(sessionID string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	long := loadTier[any](fs.longPath)
	short := loadTier[map[string]any](fs.shortPath)[sessionID]

	var b strings.Builder
	if len(long) > 0 {
		b.WriteString("User Preferences (Long Term Memory):\n")
		for _, k := range sortedKeys(long) {
			fmt.Fprintf(&b, "- %s: %v\n", k, long[k])
		}
	}
	if len(short) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Current Session Context (Short Term Memory):\n")
		for _, k := range sortedKeys(short) {
			fmt.Fprintf(&b, "- %s: %v\n", k, short[k])
		}
	}
	return b.String()
}

// loadTier reads a JSON file into a map, returning an empty map on any
// failure so a corrupt file degrades to empty memory instead of an error,
// matching the permissive load semantics the assistant relies on.
func loadTier[V any](path string) map[string]V {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]V{}
	}
	var out map[string]V
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]V{}
	}
	return out
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
