package core

import (
	"context"

	"github.com/coderlang-ai/coderlang/logging"
)

// recordingSessionStore captures applied deltas for assertions.
type recordingSessionStore struct {
	applied map[string]map[string]interface{}
}

func (s *recordingSessionStore) Get(id string) (*Session, error)       { return NewSession(id), nil }
func (s *recordingSessionStore) Create(id string) (*Session, error)    { return NewSession(id), nil }
func (s *recordingSessionStore) AppendEvent(id string, ev Event) error { return nil }

func (s *recordingSessionStore) ApplyDelta(id string, delta map[string]interface{}) error {
	if s.applied == nil {
		s.applied = map[string]map[string]interface{}{}
	}

	cp := map[string]interface{}{}
	for k, v := range delta {
		cp[k] = v
	}

	s.applied[id] = cp

	return nil
}

type recordingArtifactStore struct{ saved map[string]map[string][]byte }

func (a *recordingArtifactStore) Save(sid, aid string, data []byte) error {
	if a.saved == nil {
		a.saved = map[string]map[string][]byte{}
	}

	if _, ok := a.saved[sid]; !ok {
		a.saved[sid] = map[string][]byte{}
	}

	a.saved[sid][aid] = append([]byte{}, data...)

	return nil
}

func (a *recordingArtifactStore) Get(sid, aid string) ([]byte, error) {
	return a.saved[sid][aid], nil
}

func (a *recordingArtifactStore) List(sid string) ([]string, error) {
	ids := []string{}
	for k := range a.saved[sid] {
		ids = append(ids, k)
	}

	return ids, nil
}

func (a *recordingArtifactStore) Delete(sid, aid string) error { return nil }

type emptyMemoryStore struct{}

func (m *emptyMemoryStore) Get(sessionID string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (m *emptyMemoryStore) Put(sessionID string, delta map[string]any) error { return nil }

func (m *emptyMemoryStore) Search(sid, q string, limit int) ([]SearchResult, error) {
	return []SearchResult{}, nil
}

func (m *emptyMemoryStore) Store(sid, content string, metadata map[string]interface{}) error {
	return nil
}

func (m *emptyMemoryStore) Delete(sid, memoryID string) error { return nil }

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 5)
	resume := make(chan struct{}, 5)

	rc := NewRunContext(
		context.Background(), "sess-x", "run-x",
		AgentInfo{Name: "CodeGenerator", Type: "model"},
		Content{}, 0, emit, resume,
		NewSession("sess-x"),
		&recordingSessionStore{},
		&recordingArtifactStore{},
		&emptyMemoryStore{},
		logging.NoOpLogger{},
	)

	return rc, emit
}
