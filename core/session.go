package core

import (
	"errors"
	"maps"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by stores when no session exists for a key.
var ErrSessionNotFound = errors.New("session not found")

// SessionKey identifies a conversation. The same session id under two user ids
// names two independent conversations.
type SessionKey struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// String renders the key as "user/session".
func (k SessionKey) String() string { return k.UserID + "/" + k.SessionID }

// Session represents a conversational container tracking mutable key/value
// state plus an ordered event history. It is safe for concurrent access.
//
// Contract:
//   - State mutations update the Updated timestamp
//   - GetEvents returns a copy to avoid external mutation
//   - History and Transcript only return user turns and final assistant answers
//   - Clone performs deep copies of maps/slices for safe divergence
type Session struct {
	ID      string         `json:"id"`
	UserID  string         `json:"user_id"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates an empty session for key.
func NewSession(key SessionKey) *Session {
	now := time.Now()
	return &Session{ID: key.SessionID, UserID: key.UserID, State: map[string]any{}, Events: []Event{}, Created: now, Updated: now}
}

// Key returns the session key.
func (s *Session) Key() SessionKey { return SessionKey{UserID: s.UserID, SessionID: s.ID} }

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState sets a key/value pair in session state.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now()
}

// ApplyStateDelta merges the provided key/value pairs into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.State, delta)
	s.Updated = time.Now()
}

// StateSnapshot returns a copy of the state map.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.State)
}

// AddEvent appends an event to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	s.Updated = time.Now()
}

// GetEvents returns a copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// History returns the conversation of one branch at one nesting depth: user
// turns and final assistant answers, excluding events of invocation
// excludeRunID, trimmed to the last maxPairs turns. maxPairs <= 0 keeps
// everything.
func (s *Session) History(branch string, depth int, excludeRunID string, maxPairs int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Branch != branch || ev.Depth != depth || (excludeRunID != "" && ev.InvocationID == excludeRunID) {
			continue
		}
		if isConversational(ev) {
			res = append(res, ev)
		}
	}

	return TrimToPairs(res, maxPairs)
}

// Transcript returns user turns and final answers of root agents across all
// branches, trimmed to the last maxPairs turns. It is the view an intent
// classifier gets of the conversation.
func (s *Session) Transcript(maxPairs int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Depth > 0 {
			continue
		}
		if isConversational(ev) {
			res = append(res, ev)
		}
	}

	return TrimToPairs(res, maxPairs)
}

func isConversational(ev Event) bool {
	if ev.Content == nil || ev.IsPartial() || ev.IsError() {
		return false
	}
	switch ev.Content.Role {
	case RoleUser:
		return ev.IsUserTurn()
	case RoleAssistant:
		return ev.IsFinalResponse() && ev.Text() != ""
	default:
		return false
	}
}

// TrimToPairs keeps the suffix of events that starts at the maxPairs-th last
// user turn. maxPairs <= 0 returns events unchanged.
func TrimToPairs(events []Event, maxPairs int) []Event {
	if maxPairs <= 0 {
		return events
	}

	turns := 0
	for i := len(events) - 1; i >= 0; i-- {
		if !events[i].IsUserTurn() {
			continue
		}
		turns++
		if turns == maxPairs {
			return events[i:]
		}
	}

	return events
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, UserID: s.UserID, State: maps.Clone(s.State), Events: make([]Event, len(s.Events)), Created: s.Created, Updated: s.Updated}
	if clone.State == nil {
		clone.State = map[string]any{}
	}
	copy(clone.Events, s.Events)
	return clone
}

// SessionStore persists sessions and their evolving state / event history.
type SessionStore interface {
	Create(key SessionKey) (*Session, error)
	Get(key SessionKey) (*Session, error)
	AppendEvent(key SessionKey, event Event) error
	ApplyDelta(key SessionKey, delta map[string]any) error
	Delete(key SessionKey) error
}
