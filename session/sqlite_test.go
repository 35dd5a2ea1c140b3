package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderlang-ai/coderlang/core"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newSQLiteStore(t)

	sess, err := store.Create("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Empty(t, sess.Events)

	// lazy creation on Get, like the in-memory store
	other, err := store.Get("sess-2")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", other.ID)
}

func TestSQLiteStore_AppendEventRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)

	ev := core.NewUserMessageEvent("run-1", "write a fibonacci function")
	require.NoError(t, store.AppendEvent("sess", ev))

	sess, err := store.Get("sess")
	require.NoError(t, err)
	require.Len(t, sess.Events, 1)
	assert.Equal(t, "run-1", sess.Events[0].RunID)
	assert.Equal(t, "write a fibonacci function", sess.Events[0].Content.Text())
}

func TestSQLiteStore_AppendPreservesOrder(t *testing.T) {
	store := newSQLiteStore(t)

	for _, text := range []string{"first", "second", "third"} {
		ev := core.NewEvent("run-1", "agent")
		ev.Content = core.NewTextContent("assistant", text)
		require.NoError(t, store.AppendEvent("sess", ev))
	}

	sess, err := store.Get("sess")
	require.NoError(t, err)
	require.Len(t, sess.Events, 3)
	assert.Equal(t, "first", sess.Events[0].Content.Text())
	assert.Equal(t, "third", sess.Events[2].Content.Text())
}

func TestSQLiteStore_ApplyDelta(t *testing.T) {
	store := newSQLiteStore(t)

	require.NoError(t, store.ApplyDelta("sess", map[string]interface{}{"coordinator.stage": "PLANNED"}))
	require.NoError(t, store.ApplyDelta("sess", map[string]interface{}{"code_generated": true}))

	sess, err := store.Get("sess")
	require.NoError(t, err)
	assert.Equal(t, "PLANNED", sess.StateString("coordinator.stage"))
	assert.Equal(t, true, sess.State["code_generated"])
}

func TestSQLiteStore_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store1.ApplyDelta("sess", map[string]interface{}{"k": "v"}))
	require.NoError(t, store1.AppendEvent("sess", core.NewUserMessageEvent("run", "hello")))
	require.NoError(t, store1.Close())

	store2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store2.Close()

	sess, err := store2.Get("sess")
	require.NoError(t, err)
	assert.Equal(t, "v", sess.State["k"])
	require.Len(t, sess.Events, 1)
	assert.Equal(t, "hello", sess.Events[0].Content.Text())
}
