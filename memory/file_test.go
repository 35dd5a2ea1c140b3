package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGetTiers(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = fs.Put("sess-1", map[string]any{
		"topic":          "goroutines",
		"long:language":  "python",
		"long:verbosity": "short",
	})
	require.NoError(t, err)

	got, err := fs.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "goroutines", got["topic"])
	assert.Equal(t, "python", got["long:language"])

	// long-term survives into other sessions, short-term does not
	other, err := fs.Get("sess-2")
	require.NoError(t, err)
	assert.Equal(t, "python", other["long:language"])
	_, hasTopic := other["topic"]
	assert.False(t, hasTopic)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	fs1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs1.Put("sess", map[string]any{"long:name": "Ada"}))

	fs2, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := fs2.Get("sess")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["long:name"])
}

func TestFileStore_Context(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Put("sess", map[string]any{
		"long:language": "python",
		"last_topic":    "decorators",
	}))

	ctx := fs.Context("sess")
	assert.Contains(t, ctx, "User Preferences (Long Term Memory):")
	assert.Contains(t, ctx, "- language: python")
	assert.Contains(t, ctx, "Current Session Context (Short Term Memory):")
	assert.Contains(t, ctx, "- last_topic: decorators")
}

func TestFileStore_ContextEmpty(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "", fs.Context("sess"))
}

func TestFileStore_StoreSearchDelete(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Store("sess", "prefers detailed explanations", map[string]any{"kind": "pref"}))
	require.NoError(t, fs.Store("sess", "asked about channels", nil))

	results, err := fs.Search("sess", "Detailed", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "prefers detailed explanations", results[0].Content)

	require.NoError(t, fs.Delete("sess", results[0].ID))
	results, err = fs.Search("sess", "detailed", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	assert.Error(t, fs.Delete("sess", "missing-id"))
}

func TestFileStore_SearchLimit(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, fs.Store("sess", "note about slices", nil))
	}

	results, err := fs.Search("sess", "slices", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}
