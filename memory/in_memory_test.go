package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderlang-ai/coderlang/core"
)

var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_GetAndPut(t *testing.T) {
	store := NewInMemoryStore()

	m, err := store.Get("sess-1")
	require.NoError(t, err)
	assert.Empty(t, m)

	require.NoError(t, store.Put("sess-1", map[string]any{
		"target_language": "Go",
		"retry_count":     2,
	}))

	m, err = store.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Go", m["target_language"])
	assert.Equal(t, 2, m["retry_count"])

	// Returned maps are copies.
	m["target_language"] = "Rust"

	again, err := store.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Go", again["target_language"])
}

func TestInMemoryStore_StoreSearchDelete(t *testing.T) {
	store := NewInMemoryStore()

	notes := []string{
		"user prefers table driven tests",
		"project uses chi for routing",
		"linter flagged unused import in handler.go",
		"user asked for Go 1.22 compatibility",
		"coverage threshold is 80 percent",
	}
	for i, note := range notes {
		require.NoError(t, store.Store("sess-1", note, map[string]any{"idx": i}))
	}

	all, err := store.Search("sess-1", "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	matches, err := store.Search("sess-1", "chi", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Content, "chi for routing")

	limited, err := store.Search("sess-1", "", 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)

	require.NoError(t, store.Delete("sess-1", all[0].ID))

	remaining, err := store.Search("sess-1", "", 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 4)

	assert.ErrorIs(t, store.Delete("sess-1", "mem_999"), ErrMemoryNotFound)
	assert.ErrorIs(t, store.Delete("sess-404", "mem_0"), ErrMemoryNotFound)
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			key := fmt.Sprintf("key%d", i%5)
			if err := store.Put("sess-1", map[string]any{key: i}); err != nil {
				t.Errorf("put: %v", err)
			}
			if _, err := store.Get("sess-1"); err != nil {
				t.Errorf("get: %v", err)
			}
			if _, err := store.Search("sess-1", "", 5); err != nil {
				t.Errorf("search: %v", err)
			}
		}(i)
	}
	wg.Wait()

	m, err := store.Get("sess-1")
	require.NoError(t, err)
	assert.Len(t, m, 5)
}
