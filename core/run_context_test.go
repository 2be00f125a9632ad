package core

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext_EmitEventStampsAndMergesState(t *testing.T) {
	rc, emitCh, _ := newRunContextForTest()
	rc.SetState("foo", "bar")

	require.NoError(t, rc.EmitEvent(NewMessageEvent("", "Agent1", "hi")))

	received := <-emitCh
	assert.Equal(t, "run-1", received.InvocationID)
	assert.Equal(t, "Agent1", received.Branch)
	assert.Equal(t, "bar", received.Actions.StateDelta["foo"])
	assert.Empty(t, rc.StateDelta)

	v, ok := rc.Session.GetState("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestRunContext_CommitStateDelta(t *testing.T) {
	rc, _, store := newRunContextForTest()
	rc.SetState("k1", 123)

	require.NoError(t, rc.CommitStateDelta())
	assert.Equal(t, 123, store.applied[testKey]["k1"])
	assert.Empty(t, rc.StateDelta)
}

func TestRunContext_CloneIsolation(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	rc.SetState("a", 1)

	clone := rc.Clone()
	assert.Same(t, rc.Session, clone.Session)

	clone.SetState("b", 2)
	_, exists := rc.StateDelta["b"]
	assert.False(t, exists)

	v, _ := clone.GetState("a")
	assert.Equal(t, 1, v)
}

func TestRunContext_NewChildContext(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	rc.SetState("pending", true)

	child := rc.NewChildContext(nil, AgentInfo{Name: "writer", Type: "model"}, NewTextContent(RoleUser, "draft"))
	assert.Equal(t, "Agent1.writer", child.Branch)
	assert.Equal(t, "writer", child.GetAgentName())
	assert.Equal(t, "draft", child.UserContent.Text())
	assert.Empty(t, child.StateDelta)
	assert.Equal(t, "Agent1", rc.Branch)
	assert.Equal(t, 0, rc.Depth)
	assert.Equal(t, 1, child.Depth)

	grandchild := child.NewChildContext(nil, AgentInfo{Name: "editor"}, NewTextContent(RoleUser, "x"))
	assert.Equal(t, 2, grandchild.Depth)
	assert.Equal(t, 1, child.Clone().Depth)
}

func TestRunContext_HistoryUsesBranch(t *testing.T) {
	rc, _, _ := newRunContextForTest()

	u := NewUserMessageEvent("old", "earlier")
	u.Branch = "Agent1"
	rc.Session.AddEvent(u)

	other := NewUserMessageEvent("old", "elsewhere")
	other.Branch = "Agent2"
	rc.Session.AddEvent(other)

	h := rc.History()
	require.Len(t, h, 1)
	assert.Equal(t, "earlier", h[0].Text())
}

func TestRunContext_Memory(t *testing.T) {
	rc, _, _ := newRunContextForTest()

	require.NoError(t, rc.StoreMemory("likes tea", nil))
	res, err := rc.SearchMemory("tea", 1)
	require.NoError(t, err)
	assert.Equal(t, "user-1:tea", res[0].Content)
}

func TestRunContext_ForwardKeepsEventUntouched(t *testing.T) {
	rc, emitCh, _ := newRunContextForTest()
	rc.SetState("pending", 1)

	ev := NewMessageEvent("run-9", "writer", "draft")
	ev.Branch = "Agent1.writer"
	require.NoError(t, rc.Forward(ev))

	received := <-emitCh
	assert.Equal(t, "Agent1.writer", received.Branch)
	assert.Equal(t, "run-9", received.InvocationID)
	assert.Empty(t, received.Actions.StateDelta)
	assert.Equal(t, 1, rc.StateDelta["pending"])
}

func TestRunContext_ConcurrentStateAccess(t *testing.T) {
	store := newMemSessionStore()
	sess, _ := store.Create(testKey)
	emit := make(chan Event)
	rc := NewRunContext(context.Background(), testKey, "run-1", AgentInfo{Name: "Agent1"},
		NewTextContent(RoleUser, "hello"), emit, sess, store, nil, nil)

	var received []Event
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range emit {
			received = append(received, ev)
		}
	}()

	const n = 50

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := range n {
			rc.SetState(fmt.Sprintf("k%d", i), i)
			assert.NoError(t, rc.EmitEvent(NewMessageEvent("", "Agent1", "tick")))
		}
	}()

	go func() {
		defer wg.Done()
		for range n {
			_ = rc.State()
			_, _ = rc.GetState("k0")
		}
	}()

	go func() {
		defer wg.Done()
		for range n {
			child := rc.NewChildContext(nil, AgentInfo{Name: "child"}, NewTextContent(RoleUser, "x"))
			child.SetState("child", true)
			_ = rc.History()
		}
	}()

	wg.Wait()
	close(emit)
	<-drained

	require.Len(t, received, n)
	for i := range n {
		v, ok := sess.GetState(fmt.Sprintf("k%d", i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Empty(t, rc.State()["child"])
}

func TestRunContext_EmitEventPendingStateWins(t *testing.T) {
	rc, emitCh, _ := newRunContextForTest()
	rc.SetState("k", "pending")

	ev := NewMessageEvent("", "Agent1", "hi")
	own := map[string]any{"k": "event", "other": 1}
	ev.Actions.StateDelta = own

	require.NoError(t, rc.EmitEvent(ev))

	received := <-emitCh
	assert.Equal(t, "pending", received.Actions.StateDelta["k"])
	assert.Equal(t, 1, received.Actions.StateDelta["other"])
	assert.Equal(t, "event", own["k"])
}

func TestRunContext_EmitEventCanceledKeepsDelta(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := NewRunContext(ctx, testKey, "run-1", AgentInfo{Name: "Agent1"},
		NewTextContent(RoleUser, "hello"), make(chan Event), nil, nil, nil, nil)
	rc.SetState("k", 1)

	assert.ErrorIs(t, rc.EmitEvent(NewMessageEvent("", "Agent1", "hi")), context.Canceled)

	v, ok := rc.GetState("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}
