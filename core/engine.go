package core

import "context"

// Engine coordinates agent execution and event emission.
//
// Implementations SHOULD:
//   - Reject a second agent registered under an existing name
//   - Persist every non-partial event into the session before forwarding it
//   - Propagate context cancellation to the running agent
//   - Close returned channels when an invocation terminates
type Engine interface {
	// Register makes an agent available for later invocation by name.
	Register(a Agent) error

	// Invoke starts an asynchronous invocation returning the invocation id,
	// streamed events and a terminal error channel (buffered size 1).
	Invoke(ctx context.Context, key SessionKey, agentName string, userContent Content) (string, <-chan Event, <-chan error, error)

	// InvokeSync runs an agent to completion and returns the collected events.
	InvokeSync(ctx context.Context, key SessionKey, agentName string, userContent Content) (string, []Event, error)
}
