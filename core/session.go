package core

import (
	"errors"
	"sync"
	"time"
)

// Session holds one conversation: mutable key/value state plus the ordered
// event history. The coordinator persists its workflow stage and summary in
// State, so a session survives process restarts mid-workflow. Safe for
// concurrent use.
type Session struct {
	ID       string                 `json:"id"`
	State    map[string]interface{} `json:"state"`
	Events   []Event                `json:"events"`
	Created  time.Time              `json:"created"`
	Updated  time.Time              `json:"updated"`
	Metadata map[string]string      `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession returns an empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()

	return &Session{
		ID:       id,
		State:    map[string]interface{}{},
		Events:   []Event{},
		Created:  now,
		Updated:  now,
		Metadata: map[string]string{},
	}
}

// GetState returns the value for a state key and whether it exists.
func (s *Session) GetState(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.State[key]

	return v, ok
}

// SetState writes one state key and bumps the Updated timestamp.
func (s *Session) SetState(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.State[key] = value
	s.Updated = time.Now()
}

// StateString returns the value for key as a string. Missing keys and
// non-string values yield "".
func (s *Session) StateString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.State[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}

	return ""
}

// ApplyStateDelta merges key/value pairs into State.
func (s *Session) ApplyStateDelta(delta map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range delta {
		s.State[k] = v
	}

	s.Updated = time.Now()
}

// AddEvent appends an event to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Events = append(s.Events, ev)
	s.Updated = time.Now()
}

// GetEvents returns a copy of the event history.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]Event, len(s.Events))
	copy(events, s.Events)

	return events
}

// GetConversationHistory returns the events worth showing a model as
// conversational context: user, assistant and tool messages, with streaming
// fragments dropped.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := map[string]bool{"user": true, "assistant": true, "tool": true}

	res := make([]Event, 0, len(s.Events))

	for _, ev := range s.Events {
		if ev.Content == nil || !allowed[ev.Content.Role] {
			continue
		}

		if ev.Partial != nil && *ev.Partial {
			continue
		}

		res = append(res, ev)
	}

	return res
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Session{
		ID:       s.ID,
		State:    make(map[string]interface{}, len(s.State)),
		Events:   make([]Event, len(s.Events)),
		Created:  s.Created,
		Updated:  s.Updated,
		Metadata: make(map[string]string, len(s.Metadata)),
	}

	for k, v := range s.State {
		clone.State[k] = v
	}

	copy(clone.Events, s.Events)

	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}

	return clone
}

// SessionStore persists sessions, their event history and state deltas.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	AppendEvent(sessionID string, event Event) error
	ApplyDelta(sessionID string, delta map[string]interface{}) error
}

// ErrSessionNotFound is returned when a requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")
