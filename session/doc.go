// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session struct) live in the core package so
// agents and the engine never depend on a concrete backend.
//
// Conversation history is kept per user and session id for the lifetime of
// the process.
package session
