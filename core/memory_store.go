package core

// MemoryStore defines persistence + retrieval (search) for long-term memory
// snippets. Namespace is usually a user id so memories survive sessions.
// Implementations can back search with embeddings, keywords or any heuristic.
type MemoryStore interface {
	Get(namespace string) (map[string]any, error)
	Put(namespace string, delta map[string]any) error
	Search(namespace string, query string, limit int) ([]SearchResult, error)
	Store(namespace string, content string, metadata map[string]any) error
	Delete(namespace string, memoryID string) error
}
