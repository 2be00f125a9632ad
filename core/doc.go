// Package core provides the foundational domain types, interfaces and execution
// contexts used by agentcrew. It defines the core abstractions for:
//
//   - Agents (model-backed workers and team compositions)
//   - Sessions (per user and session conversation containers with event history)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//   - Pluggable stores for session state and memory recall/search
//
// Implementation concerns (persistence, engine orchestration, concrete agents)
// live in other packages; core only exposes small interfaces.
package core
