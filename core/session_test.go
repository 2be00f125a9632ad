package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ApplyStateDeltaAndClone(t *testing.T) {
	s := NewSession(testKey)
	s.ApplyStateDelta(map[string]any{"a": 1, "b": "x"})

	v, ok := s.GetState("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clone := s.Clone()
	assert.NotSame(t, s, clone)

	clone.SetState("c", 2)
	_, exists := s.GetState("c")
	assert.False(t, exists)
	assert.Equal(t, testKey, clone.Key())
}

func TestSession_GetEventsIsCopy(t *testing.T) {
	s := NewSession(testKey)
	s.AddEvent(NewUserMessageEvent("r1", "hi"))

	all := s.GetEvents()
	all[0].Author = "changed"
	assert.Equal(t, "user", s.GetEvents()[0].Author)
}

func addTurn(s *Session, runID, branch, in, out string) {
	addTurnAt(s, runID, branch, 0, in, out)
}

func addTurnAt(s *Session, runID, branch string, depth int, in, out string) {
	u := NewUserMessageEvent(runID, in)
	call := NewFunctionCallEvent(runID, branch, "", FunctionCall{ID: "c", Name: "tool"})
	resp := NewFunctionResponseEvent(runID, branch, "c", "tool", "ok", nil)
	partial := NewPartialEvent(runID, branch, out[:1])
	a := NewMessageEvent(runID, branch, out)

	for _, ev := range []Event{u, call, resp, partial, a} {
		ev.Branch = branch
		ev.Depth = depth
		s.AddEvent(ev)
	}
}

func TestSession_HistoryFiltersBranchAndTrims(t *testing.T) {
	s := NewSession(testKey)
	addTurn(s, "r1", "Weather Agent", "q1", "a1")
	addTurn(s, "r2", "Health Agent", "q2", "a2")
	addTurn(s, "r3", "Weather Agent", "q3", "a3")
	addTurn(s, "r4", "Weather Agent", "q4", "a4")

	h := s.History("Weather Agent", 0, "", 0)
	require.Len(t, h, 6)
	assert.Equal(t, "q1", h[0].Text())
	assert.Equal(t, "a4", h[5].Text())

	h = s.History("Weather Agent", 0, "", 2)
	require.Len(t, h, 4)
	assert.Equal(t, "q3", h[0].Text())

	h = s.History("Weather Agent", 0, "r4", 0)
	require.Len(t, h, 4)
	assert.Equal(t, "a3", h[3].Text())
}

func TestSession_TranscriptSkipsNestedBranches(t *testing.T) {
	s := NewSession(testKey)
	addTurn(s, "r1", "SupervisorAgent", "q1", "final")
	addTurnAt(s, "r1", "SupervisorAgent.writer", 1, "draft please", "draft")

	tr := s.Transcript(10)
	require.Len(t, tr, 2)
	assert.Equal(t, "q1", tr[0].Text())
	assert.Equal(t, "final", tr[1].Text())
	assert.Equal(t, "SupervisorAgent", tr[1].Author)
}

func TestSession_HistorySeparatesDepths(t *testing.T) {
	s := NewSession(testKey)
	addTurn(s, "r1", "a.b", "root question", "root answer")
	addTurnAt(s, "r2", "a.b", 1, "child question", "child answer")

	root := s.History("a.b", 0, "", 0)
	require.Len(t, root, 2)
	assert.Equal(t, "root answer", root[1].Text())

	child := s.History("a.b", 1, "", 0)
	require.Len(t, child, 2)
	assert.Equal(t, "child answer", child[1].Text())
}

func TestSession_TranscriptKeepsDottedRootNames(t *testing.T) {
	s := NewSession(testKey)
	addTurn(s, "r1", "v1.5 Agent", "q1", "a1")
	addTurnAt(s, "r2", "v1.5 Agent.helper", 1, "sub", "sub answer")
	addTurn(s, "r3", "Health Agent", "q2", "a2")

	tr := s.Transcript(0)
	require.Len(t, tr, 4)
	assert.Equal(t, "a1", tr[1].Text())
	assert.Equal(t, "v1.5 Agent", tr[1].Branch)
	assert.Equal(t, "a2", tr[3].Text())
}

func TestTrimToPairs(t *testing.T) {
	events := []Event{
		NewMessageEvent("r", "a", "orphan"),
		NewUserMessageEvent("r", "1"),
		NewMessageEvent("r", "a", "1"),
		NewUserMessageEvent("r", "2"),
		NewMessageEvent("r", "a", "2"),
	}

	assert.Len(t, TrimToPairs(events, 0), 5)
	assert.Len(t, TrimToPairs(events, 5), 5)

	got := TrimToPairs(events, 1)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Text())
}
