package session

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// InMemoryStore is a volatile SessionStore storing sessions in a process
// local map keyed by user and session id. It is safe for concurrent access.
// Get returns clones so callers cannot mutate the stored history.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[core.SessionKey]*core.Session
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[core.SessionKey]*core.Session)}
}

// Get returns a clone of an existing session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(key core.SessionKey) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if session, ok := s.sessions[key]; ok {
		return session.Clone(), nil
	}

	return nil, core.ErrSessionNotFound
}

// Create creates (or resets) the session with the given key.
func (s *InMemoryStore) Create(key core.SessionKey) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createSessionLocked(key).Clone(), nil
}

// AppendEvent adds an event to an existing or newly created session.
func (s *InMemoryStore) AppendEvent(key core.SessionKey, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		sess = s.createSessionLocked(key)
	}

	sess.AddEvent(ev)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(key core.SessionKey, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		sess = s.createSessionLocked(key)
	}

	sess.ApplyStateDelta(delta)

	return nil
}

// Delete removes a session. Deleting an unknown key is a no-op.
func (s *InMemoryStore) Delete(key core.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)

	return nil
}

// List returns the session ids of a user in lexical order.
func (s *InMemoryStore) List(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for k := range s.sessions {
		if k.UserID == userID {
			ids = append(ids, k.SessionID)
		}
	}

	sort.Strings(ids)

	return ids
}

func (s *InMemoryStore) createSessionLocked(key core.SessionKey) *core.Session {
	sess := core.NewSession(key)
	s.sessions[key] = sess
	return sess
}
