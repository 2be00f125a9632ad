package memory

import (
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// ErrMemoryNotFound is returned when deleting an unknown memory id.
var ErrMemoryNotFound = errors.New("memory not found")

// StoredMemory is the internal representation persisted by InMemoryStore.
type StoredMemory struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// InMemoryStore is a process‑local MemoryStore. It offers:
//  1. Namespace scoped key/value memory (Get / Put)
//  2. Append‑only stored memories with term-overlap Search
//
// Search lowercases query and content, scores each memory by the fraction of
// query terms it contains and returns hits by descending score, then insertion
// order. An empty query matches everything with score 1.
type InMemoryStore struct {
	mu      sync.RWMutex
	memory  map[string]map[string]any // namespace -> key -> value
	storage map[string][]StoredMemory // namespace -> memories in insertion order
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memory:  make(map[string]map[string]any),
		storage: make(map[string][]StoredMemory),
	}
}

// Get returns a shallow copy of the key/value memory map for the namespace.
func (m *InMemoryStore) Get(namespace string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kv, exists := m.memory[namespace]
	if !exists {
		return make(map[string]any), nil
	}

	return maps.Clone(kv), nil
}

// Put merges the provided delta map into the namespace's key/value memory.
func (m *InMemoryStore) Put(namespace string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.memory[namespace]; !exists {
		m.memory[namespace] = make(map[string]any)
	}

	maps.Copy(m.memory[namespace], delta)

	return nil
}

// Search scores stored memories against query and returns at most limit hits.
// limit <= 0 returns every hit.
func (m *InMemoryStore) Search(namespace string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))

	results := []core.SearchResult{}
	for _, stored := range m.storage[namespace] {
		score := termScore(strings.ToLower(stored.Content), terms)
		if score == 0 {
			continue
		}
		results = append(results, core.SearchResult{ID: stored.ID, Content: stored.Content, Score: score, Metadata: maps.Clone(stored.Metadata)})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

func termScore(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 1
	}

	hits := 0
	for _, t := range terms {
		if strings.Contains(content, t) {
			hits++
		}
	}

	return float64(hits) / float64(len(terms))
}

// Store appends a new stored memory.
func (m *InMemoryStore) Store(namespace string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.storage[namespace] = append(m.storage[namespace], StoredMemory{ID: core.NewID(), Content: content, Metadata: maps.Clone(metadata)})

	return nil
}

// Delete removes a stored memory entry by id.
func (m *InMemoryStore) Delete(namespace string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.storage[namespace]
	for i, stored := range list {
		if stored.ID == memoryID {
			m.storage[namespace] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}

	return ErrMemoryNotFound
}
