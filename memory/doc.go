// Package memory contains long-term memory support: a MemoryStore
// implementation (the interface lives in core) and a Manager that extracts
// structured memories such as a user profile from conversations with a model.
package memory
