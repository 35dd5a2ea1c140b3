package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext_EmitEventStateAndArtifacts(t *testing.T) {
	rc, emitCh := newRunContextForTest()

	rc.SetState("target_language", "go")
	rc.AddArtifact("main.go")

	ev := NewEvent(rc.RunID, "CodeGenerator")
	require.NoError(t, rc.EmitEvent(ev))

	received := <-emitCh
	assert.Equal(t, "go", received.Actions.StateDelta["target_language"])
	assert.Equal(t, 1, received.Actions.ArtifactDelta["main.go"])

	// Staged deltas travel on the event exactly once.
	assert.Empty(t, rc.StateDelta)
	assert.Empty(t, rc.Artifacts)
}

func TestRunContext_CommitStateDelta(t *testing.T) {
	rc, _ := newRunContextForTest()
	store := rc.SessionStore.(*recordingSessionStore)

	rc.SetState("attempts", 3)
	require.NoError(t, rc.CommitStateDelta())

	require.NotNil(t, store.applied)
	assert.Equal(t, 3, store.applied[rc.SessionID]["attempts"])
	assert.Empty(t, rc.StateDelta, "delta clears after commit")
}

func TestRunContext_CloneIsolation(t *testing.T) {
	rc, _ := newRunContextForTest()
	rc.SetState("a", 1)
	rc.AddArtifact("f1")

	clone := rc.Clone()
	assert.Same(t, rc.Session, clone.Session, "session pointer is shared")

	clone.SetState("b", 2)
	_, exists := rc.StateDelta["b"]
	assert.False(t, exists, "clone writes must not leak into the original")

	v, _ := clone.GetState("a")
	assert.Equal(t, 1, v)
}

func TestRunContext_WithBranch(t *testing.T) {
	rc, _ := newRunContextForTest()

	branched := rc.WithBranch("Coordinator.CodeGenerator")
	assert.Equal(t, "Coordinator.CodeGenerator", branched.Branch)
	assert.Empty(t, rc.Branch, "original branch stays unset")
}
