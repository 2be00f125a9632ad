package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

func runFlow(t *testing.T, f Flow, rc *core.RunContext) ([]core.Event, error) {
	t.Helper()

	events, errCh := f.Execute(rc)

	var got []core.Event
	for ev := range events {
		got = append(got, ev)
	}

	return got, <-errCh
}

func TestSingleAgentFlow(t *testing.T) {
	llm := model.NewMockModel("test-model", "mock")
	llm.AddResponse("test message", "Hello! This is a test response.")
	agent := &teAgent{name: "test-agent", llm: llm}

	h := testutil.NewRunContext(context.Background(), "test-agent", "test message")

	events, err := runFlow(t, NewSingleAgentFlow(agent), h.RunCtx)
	if err != nil {
		t.Fatalf("flow execution failed: %v", err)
	}

	texts := testutil.FinalTexts(events)
	if len(texts) != 1 || texts[0] != "Hello! This is a test response." {
		t.Fatalf("unexpected final texts: %v", texts)
	}
	if events[len(events)-1].TurnComplete == nil || !*events[len(events)-1].TurnComplete {
		t.Fatalf("expected last event to complete the turn")
	}
}

func TestSingleAgentFlow_NoModel(t *testing.T) {
	agent := &teAgent{name: "lonely"}
	h := testutil.NewRunContext(context.Background(), "lonely", "hi")

	_, err := runFlow(t, NewSingleAgentFlow(agent), h.RunCtx)
	if !errors.Is(err, ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}
}

func TestSingleAgentFlow_RequestShape(t *testing.T) {
	llm := model.NewScriptedModel("scripted", model.Step{Text: "second answer"})
	agent := &teAgent{name: "agent", llm: llm}

	h := testutil.NewRunContext(context.Background(), "agent", "follow up")

	prior := core.NewUserMessageEvent("run-0", "first question")
	prior.Branch = "agent"
	answer := core.NewMessageEvent("run-0", "agent", "first answer")
	answer.Branch = "agent"
	other := core.NewMessageEvent("run-0", "someone", "not mine")
	other.Branch = "someone"
	h.RunCtx.Session.AddEvent(prior)
	h.RunCtx.Session.AddEvent(answer)
	h.RunCtx.Session.AddEvent(other)

	if _, err := runFlow(t, NewSingleAgentFlow(agent), h.RunCtx); err != nil {
		t.Fatalf("flow execution failed: %v", err)
	}

	reqs := llm.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.Instructions != "be helpful" {
		t.Fatalf("unexpected instructions %q", req.Instructions)
	}
	if len(req.Tools) != 0 {
		t.Fatalf("expected no tools, got %d", len(req.Tools))
	}

	var texts []string
	for _, c := range req.Contents {
		texts = append(texts, c.Role+":"+c.Text())
	}
	want := "user:first question|assistant:first answer|user:follow up"
	if strings.Join(texts, "|") != want {
		t.Fatalf("unexpected contents %q", strings.Join(texts, "|"))
	}
}

func TestToolFlow_ToolLoop(t *testing.T) {
	weather := tool.NewFunctionToolFromParams("get_weather", "weather", []tool.Param{
		{Name: "location", Required: true},
	}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return "sunny in " + args["location"].(string), nil
	})

	llm := model.NewScriptedModel("scripted",
		model.Step{Calls: []core.FunctionCall{{ID: "call-1", Name: "get_weather", Arguments: `{"location":"Paris"}`}}},
		model.Step{Text: "It is sunny in Paris."},
	)

	agent := newTEAgent(t, weather)
	agent.llm = llm

	h := testutil.NewRunContext(context.Background(), "agent", "weather in Paris?")

	events, err := runFlow(t, NewToolFlow(agent), h.RunCtx)
	if err != nil {
		t.Fatalf("flow execution failed: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("expected call, response and answer events, got %d", len(events))
	}
	if calls := events[0].GetFunctionCalls(); len(calls) != 1 || calls[0].Name != "get_weather" {
		t.Fatalf("unexpected call event: %+v", calls)
	}
	if frs := events[1].GetFunctionResponses(); len(frs) != 1 || frs[0].Response != "sunny in Paris" {
		t.Fatalf("unexpected response event: %+v", frs)
	}
	if events[2].Text() != "It is sunny in Paris." {
		t.Fatalf("unexpected answer %q", events[2].Text())
	}

	reqs := llm.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(reqs))
	}
	if len(reqs[0].Tools) != 1 || reqs[0].Tools[0].Function.Name != "get_weather" {
		t.Fatalf("expected tool definition in request")
	}

	second := reqs[1].Contents
	if len(second) != 3 {
		t.Fatalf("expected input, call and result in second request, got %d", len(second))
	}
	if second[2].Role != core.RoleTool {
		t.Fatalf("expected tool role, got %q", second[2].Role)
	}
}

func TestToolFlow_StopsOnTransfer(t *testing.T) {
	llm := model.NewScriptedModel("scripted",
		model.Step{Calls: []core.FunctionCall{{ID: "h1", Name: tool.HandoffToolName("billing")}}},
		model.Step{Text: "should not be reached"},
	)

	agent := newTEAgent(t, tool.NewHandoffTool("billing", "billing questions"))
	agent.llm = llm

	h := testutil.NewRunContext(context.Background(), "agent", "refund please")

	events, err := runFlow(t, NewToolFlow(agent), h.RunCtx)
	if err != nil {
		t.Fatalf("flow execution failed: %v", err)
	}
	if llm.Calls() != 1 {
		t.Fatalf("expected flow to stop after handoff, got %d calls", llm.Calls())
	}

	last := events[len(events)-1]
	if last.Actions.TransferToAgent == nil || *last.Actions.TransferToAgent != "billing" {
		t.Fatalf("expected transfer to billing on last event")
	}
}

func TestToolFlow_CallLimit(t *testing.T) {
	loop := &teMockTool{name: "again", result: "more"}
	llm := model.NewScriptedModel("scripted",
		model.Step{Calls: []core.FunctionCall{{ID: "1", Name: "again"}}},
		model.Step{Calls: []core.FunctionCall{{ID: "2", Name: "again"}}},
		model.Step{Calls: []core.FunctionCall{{ID: "3", Name: "again"}}},
	)

	agent := newTEAgent(t, loop)
	agent.llm = llm
	agent.maxCalls = 2

	h := testutil.NewRunContext(context.Background(), "agent", "loop")

	_, err := runFlow(t, NewToolFlow(agent), h.RunCtx)
	if !errors.Is(err, core.ErrCallLimitExceeded) {
		t.Fatalf("expected ErrCallLimitExceeded, got %v", err)
	}
	if llm.Calls() != 2 {
		t.Fatalf("expected 2 model calls, got %d", llm.Calls())
	}
}

func TestFlow_StreamingPartials(t *testing.T) {
	llm := model.NewScriptedModel("scripted", model.Step{Text: "one two three"})

	var tokens []string
	agent := &teAgent{
		name:   "agent",
		llm:    llm,
		stream: true,
		callbacks: Callbacks{
			OnLLMNewToken: func(token string) { tokens = append(tokens, token) },
		},
	}

	h := testutil.NewRunContext(context.Background(), "agent", "count")

	events, err := runFlow(t, NewSingleAgentFlow(agent), h.RunCtx)
	if err != nil {
		t.Fatalf("flow execution failed: %v", err)
	}

	var partials int
	for _, ev := range events {
		if ev.IsPartial() {
			partials++
		}
	}
	if partials != 3 {
		t.Fatalf("expected 3 partial events, got %d", partials)
	}
	if strings.Join(tokens, "") != "one two three" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
	if texts := testutil.FinalTexts(events); len(texts) != 1 || texts[0] != "one two three" {
		t.Fatalf("unexpected final texts %v", texts)
	}
}

func TestFlow_ModelError(t *testing.T) {
	llm := model.NewScriptedModel("scripted", model.Step{Err: model.ErrRateLimited})
	agent := &teAgent{name: "agent", llm: llm}

	h := testutil.NewRunContext(context.Background(), "agent", "hi")

	_, err := runFlow(t, NewSingleAgentFlow(agent), h.RunCtx)
	if !errors.Is(err, model.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSelector(t *testing.T) {
	s := NewSelector()

	if _, ok := s.SelectFlow(&teAgent{name: "plain"}).(*SingleAgentFlow); !ok {
		t.Fatalf("expected SingleAgentFlow for agent without tools")
	}

	withTools := newTEAgent(t, &teMockTool{name: "x"})
	if _, ok := s.SelectFlow(withTools).(*ToolFlow); !ok {
		t.Fatalf("expected ToolFlow for agent with tools")
	}
}
