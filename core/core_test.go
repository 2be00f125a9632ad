package core

import (
	"context"
	"maps"
	"sync"
)

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[SessionKey]*Session
	applied  map[SessionKey]map[string]any
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[SessionKey]*Session{}, applied: map[SessionKey]map[string]any{}}
}

func (s *memSessionStore) Create(key SessionKey) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := NewSession(key)
	s.sessions[key] = sess
	return sess, nil
}

func (s *memSessionStore) Get(key SessionKey) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *memSessionStore) AppendEvent(key SessionKey, ev Event) error { return nil }

func (s *memSessionStore) ApplyDelta(key SessionKey, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied[key] = maps.Clone(delta)
	return nil
}

func (s *memSessionStore) Delete(key SessionKey) error { return nil }

type memMemoryStore struct {
	stored []string
}

func (m *memMemoryStore) Get(string) (map[string]any, error) { return map[string]any{}, nil }
func (m *memMemoryStore) Put(string, map[string]any) error   { return nil }
func (m *memMemoryStore) Search(ns, q string, limit int) ([]SearchResult, error) {
	return []SearchResult{{ID: "m1", Content: ns + ":" + q, Score: 0.9}}, nil
}
func (m *memMemoryStore) Store(ns, content string, md map[string]any) error {
	m.stored = append(m.stored, ns+":"+content)
	return nil
}
func (m *memMemoryStore) Delete(string, string) error { return nil }

var testKey = SessionKey{UserID: "user-1", SessionID: "sess-1"}

func newRunContextForTest() (*RunContext, chan Event, *memSessionStore) {
	emit := make(chan Event, 10)
	store := newMemSessionStore()
	sess, _ := store.Create(testKey)
	rc := NewRunContext(
		context.Background(), testKey, "run-1", AgentInfo{Name: "Agent1", Type: "test"},
		NewTextContent(RoleUser, "hello"), emit, sess, store, &memMemoryStore{}, nil,
	)
	return rc, emit, store
}
