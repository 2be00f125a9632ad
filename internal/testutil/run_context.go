package testutil

import (
	"context"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/memory"
	"github.com/hupe1980/agentcrew/session"
)

// DefaultKey is the session key used by NewRunContext.
var DefaultKey = core.SessionKey{UserID: "user-1", SessionID: "session-1"}

// RunHarness bundles a run context with its event channel and stores.
type RunHarness struct {
	RunCtx   *core.RunContext
	Events   chan core.Event
	Sessions *session.InMemoryStore
	Memory   *memory.InMemoryStore
}

// NewRunContext returns a run context for agent name with input text. The
// event channel is buffered generously so agents never block in tests.
func NewRunContext(ctx context.Context, agentName, input string) *RunHarness {
	if ctx == nil {
		ctx = context.Background()
	}

	sessions := session.NewInMemoryStore()
	mem := memory.NewInMemoryStore()
	sess, _ := sessions.Create(DefaultKey)
	events := make(chan core.Event, 1024)

	rc := core.NewRunContext(ctx, DefaultKey, "run-1", core.AgentInfo{Name: agentName, Type: "test"},
		core.NewTextContent(core.RoleUser, input), events, sess, sessions, mem, nil)

	return &RunHarness{RunCtx: rc, Events: events, Sessions: sessions, Memory: mem}
}

// NewToolContext returns a tool context bound to a fresh run context.
func NewToolContext(agentName, callID string) (*core.ToolContext, *RunHarness) {
	h := NewRunContext(context.Background(), agentName, "")
	return core.NewToolContext(h.RunCtx, callID), h
}

// Drain returns all events currently buffered in the harness channel.
func (h *RunHarness) Drain() []core.Event {
	var out []core.Event
	for {
		select {
		case ev := <-h.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// FinalTexts returns the text of the final, non-empty events in order.
func FinalTexts(events []core.Event) []string {
	var out []string
	for _, ev := range events {
		if ev.IsFinalResponse() && ev.Text() != "" {
			out = append(out, ev.Text())
		}
	}
	return out
}
