package core

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/hupe1980/agentcrew/logging"
)

// RunContext is the per-invocation execution scope passed to an Agent's Run
// method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (user, session, run, agent)
//   - The input Content of the current agent
//   - The emission channel
//   - Backing stores (session, memory) and a Session snapshot
//   - Pending StateDelta and the Branch label of the agent in its composition
//
// State mutations performed via SetState accumulate in StateDelta until
// EmitEvent or CommitStateDelta applies them. The state methods, History,
// Clone and EmitEvent are safe for concurrent use; StateDelta and Session
// must not be touched directly while the context is shared.
type RunContext struct {
	Context         context.Context
	UserID          string
	SessionID       string
	RunID           string
	Agent           AgentInfo
	UserContent     Content
	MaxMessagePairs int
	Emit            chan<- Event
	SessionStore    SessionStore
	MemoryStore     MemoryStore
	Session         *Session
	StateDelta      map[string]any
	Branch          string
	// Depth is the nesting level of the agent; 0 for the root agent.
	Depth int
	// SkipHistory hides prior conversation from the agent. Team members that
	// receive the shared transcript as input run with it set.
	SkipHistory bool

	*loggerAdapter

	mu sync.Mutex
}

// NewRunContext constructs a RunContext with an empty state delta.
func NewRunContext(
	ctx context.Context,
	key SessionKey,
	runID string,
	agent AgentInfo,
	userContent Content,
	emit chan<- Event,
	sess *Session,
	sessionStore SessionStore,
	memoryStore MemoryStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		UserID:        key.UserID,
		SessionID:     key.SessionID,
		RunID:         runID,
		Agent:         agent,
		UserContent:   userContent,
		Emit:          emit,
		Session:       sess,
		SessionStore:  sessionStore,
		MemoryStore:   memoryStore,
		StateDelta:    map[string]any{},
		Branch:        agent.Name,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Key returns the session key of the run.
func (rc *RunContext) Key() SessionKey { return SessionKey{UserID: rc.UserID, SessionID: rc.SessionID} }

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	rc.mu.Lock()
	v, ok := rc.StateDelta[k]
	sess := rc.Session
	rc.mu.Unlock()

	if ok {
		return v, true
	}

	if sess != nil {
		return sess.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation in the delta buffer.
func (rc *RunContext) SetState(k string, v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.StateDelta == nil {
		rc.StateDelta = map[string]any{}
	}
	rc.StateDelta[k] = v
}

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.StateDelta == nil {
		rc.StateDelta = map[string]any{}
	}
	maps.Copy(rc.StateDelta, d)
}

// State returns the session state overlaid with the staged delta.
func (rc *RunContext) State() map[string]any {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	out := map[string]any{}
	if rc.Session != nil {
		out = rc.Session.StateSnapshot()
	}
	maps.Copy(out, rc.StateDelta)
	return out
}

// SearchMemory queries the MemoryStore in the user's namespace.
func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryStore == nil {
		return []SearchResult{}, nil
	}

	return rc.MemoryStore.Search(rc.UserID, q, limit)
}

// StoreMemory appends content plus metadata to the MemoryStore in the user's namespace.
func (rc *RunContext) StoreMemory(content string, md map[string]any) error {
	if rc.MemoryStore == nil {
		return fmt.Errorf("memory store not configured")
	}

	return rc.MemoryStore.Store(rc.UserID, content, md)
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := rc.SessionStore.Get(rc.Key())
	if err != nil {
		return err
	}

	rc.mu.Lock()
	rc.Session = s
	rc.mu.Unlock()

	return nil
}

// CommitStateDelta persists the accumulated StateDelta then clears the buffer.
func (rc *RunContext) CommitStateDelta() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if len(rc.StateDelta) == 0 {
		return nil
	}

	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	if err := rc.SessionStore.ApplyDelta(rc.Key(), rc.StateDelta); err != nil {
		return err
	}

	rc.StateDelta = map[string]any{}

	return nil
}

// History returns the prior conversation of this context's branch trimmed to
// MaxMessagePairs.
func (rc *RunContext) History() []Event {
	rc.mu.Lock()
	sess := rc.Session
	rc.mu.Unlock()

	if sess == nil || rc.SkipHistory {
		return nil
	}

	return sess.History(rc.Branch, rc.Depth, rc.RunID, rc.MaxMessagePairs)
}

// GetAgentName returns the logical agent name for this run.
func (rc *RunContext) GetAgentName() string { return rc.Agent.Name }

// Clone returns a shallow copy with a deep-copied delta.
func (rc *RunContext) Clone() *RunContext {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	delta := maps.Clone(rc.StateDelta)
	if delta == nil {
		delta = map[string]any{}
	}

	return &RunContext{
		Context:         rc.Context,
		UserID:          rc.UserID,
		SessionID:       rc.SessionID,
		RunID:           rc.RunID,
		Agent:           rc.Agent,
		UserContent:     rc.UserContent,
		MaxMessagePairs: rc.MaxMessagePairs,
		Emit:            rc.Emit,
		SessionStore:    rc.SessionStore,
		MemoryStore:     rc.MemoryStore,
		Session:         rc.Session,
		StateDelta:      delta,
		Branch:          rc.Branch,
		Depth:           rc.Depth,
		SkipHistory:     rc.SkipHistory,
		loggerAdapter:   rc.loggerAdapter,
	}
}

// WithBranch clones the context and sets the Branch label.
func (rc *RunContext) WithBranch(b string) *RunContext {
	c := rc.Clone()
	c.Branch = b
	return c
}

// NewChildContext derives a context for a nested agent run. The child gets a
// fresh delta buffer, its own agent info, input and branch "<parent>.<agent>".
// A nil emit keeps the parent's channel.
func (rc *RunContext) NewChildContext(emit chan<- Event, agent AgentInfo, input Content) *RunContext {
	if emit == nil {
		emit = rc.Emit
	}

	c := rc.Clone()
	c.Emit = emit
	c.Agent = agent
	c.UserContent = input
	c.StateDelta = map[string]any{}
	c.Branch = ChildBranch(rc.Branch, agent.Name)
	c.Depth = rc.Depth + 1

	return c
}

// ChildBranch joins a parent branch and an agent name.
func ChildBranch(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// EmitEvent stamps invocation id and branch (when unset) and the context's
// depth, merges the pending
// StateDelta into the event and emits it. The event's state delta is then
// applied to the local Session snapshot.
func (rc *RunContext) EmitEvent(ev Event) error {
	if ev.InvocationID == "" {
		ev.InvocationID = rc.RunID
	}

	if ev.Branch == "" {
		ev.Branch = rc.Branch
	}
	ev.Depth = rc.Depth

	if rc.Emit == nil {
		return fmt.Errorf("emit channel not configured")
	}

	rc.mu.Lock()
	pending := rc.StateDelta
	rc.StateDelta = map[string]any{}
	sess := rc.Session
	rc.mu.Unlock()

	if len(pending) > 0 {
		delta := make(map[string]any, len(pending)+len(ev.Actions.StateDelta))
		maps.Copy(delta, ev.Actions.StateDelta)
		maps.Copy(delta, pending)
		ev.Actions.StateDelta = delta
	}

	select {
	case <-rc.Context.Done():
		rc.restore(pending)
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	if len(ev.Actions.StateDelta) > 0 && sess != nil {
		sess.ApplyStateDelta(ev.Actions.StateDelta)
	}

	return nil
}

// restore puts back a delta that could not be emitted. Values staged in the
// meantime win.
func (rc *RunContext) restore(pending map[string]any) {
	if len(pending) == 0 {
		return
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	for k, v := range pending {
		if _, ok := rc.StateDelta[k]; !ok {
			rc.StateDelta[k] = v
		}
	}
}

// Forward passes an event of a nested agent to this context's emit channel
// unchanged. Unlike EmitEvent it touches no pending state and is safe for
// concurrent use.
func (rc *RunContext) Forward(ev Event) error {
	if rc.Emit == nil {
		return fmt.Errorf("emit channel not configured")
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
		return nil
	}
}
