package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

func sendMessagesCall(id string, pairs ...string) core.FunctionCall {
	var msgs []string
	for i := 0; i+1 < len(pairs); i += 2 {
		msgs = append(msgs, `{"recipient":"`+pairs[i]+`","content":"`+pairs[i+1]+`"}`)
	}
	return core.FunctionCall{ID: id, Name: SendMessagesToolName, Arguments: `{"messages":[` + strings.Join(msgs, ",") + `]}`}
}

func toolResults(req model.Request) []core.FunctionResponse {
	var out []core.FunctionResponse
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok {
				out = append(out, fr.FunctionResponse)
			}
		}
	}
	return out
}

func TestNewSupervisorAgent_Validation(t *testing.T) {
	lead := newModelAgent(t, "planner", nil)

	_, err := NewSupervisorAgent(lead, nil)
	assert.ErrorIs(t, err, ErrEmptyTeam)

	_, err = NewSupervisorAgent(lead, []core.Agent{newModelAgent(t, "planner", nil)})
	assert.ErrorIs(t, err, ErrDuplicateAgent)

	_, err = NewSupervisorAgent(nil, []core.Agent{NewMockAgent("a")})
	assert.ErrorIs(t, err, ErrInvalidAgent)

	s, err := NewSupervisorAgent(lead, []core.Agent{NewMockAgent("a")}, func(o *SupervisorOptions) {
		o.Name = "SupervisorAgent"
		o.Description = "manages research"
	})
	require.NoError(t, err)
	assert.Equal(t, "SupervisorAgent", s.Name())
	assert.Equal(t, "manages research", s.Description())
	assert.Same(t, lead, s.Lead())
	assert.Len(t, s.Team(), 1)
	assert.False(t, lead.HasTool(SendMessagesToolName))
}

func TestSupervisorAgent_DelegatesInParallel(t *testing.T) {
	leadLLM := model.NewScriptedModel("lead",
		model.Step{Calls: []core.FunctionCall{sendMessagesCall("c1", "news_analyst", "find news", "financial_analyst", "get data")}},
		model.Step{Text: "Here is the report."},
	)
	lead := newModelAgent(t, "planner", leadLLM, func(o *ModelAgentOptions) {
		o.Description = "research planning coordinator"
	})

	news := newModelAgent(t, "news_analyst", model.NewScriptedModel("news"), func(o *ModelAgentOptions) {
		o.Description = "For news gathering"
	})
	fin := newModelAgent(t, "financial_analyst", model.NewScriptedModel("fin"), func(o *ModelAgentOptions) {
		o.Description = "For stock data analysis"
	})

	s, err := NewSupervisorAgent(lead, []core.Agent{news, fin})
	require.NoError(t, err)

	events, _, err := runAgent(t, s, "research TSLA")
	require.NoError(t, err)

	final := lastFinal(t, events)
	assert.Equal(t, "planner", final.Branch)
	assert.Equal(t, "Here is the report.", final.Text())

	assert.NotEmpty(t, eventsOnBranch(events, "planner.news_analyst"))
	assert.NotEmpty(t, eventsOnBranch(events, "planner.financial_analyst"))

	reqs := leadLLM.Requests()
	require.Len(t, reqs, 2)

	assert.Contains(t, reqs[0].Instructions, "news_analyst: For news gathering")
	assert.Contains(t, reqs[0].Instructions, "financial_analyst: For stock data analysis")
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, SendMessagesToolName, reqs[0].Tools[0].Function.Name)

	results := toolResults(reqs[1])
	require.Len(t, results, 1)
	assert.Equal(t,
		"news_analyst: Mock response to: find news\nfinancial_analyst: Mock response to: get data",
		results[0].Response)
}

func TestSupervisorAgent_UnknownRecipient(t *testing.T) {
	leadLLM := model.NewScriptedModel("lead",
		model.Step{Calls: []core.FunctionCall{sendMessagesCall("c1", "ghost", "boo")}},
		model.Step{Text: "ok"},
	)
	lead := newModelAgent(t, "lead", leadLLM)

	s, err := NewSupervisorAgent(lead, []core.Agent{NewMockAgent("member")})
	require.NoError(t, err)

	_, _, err = runAgent(t, s, "hi")
	require.NoError(t, err)

	results := toolResults(leadLLM.Requests()[1])
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Response, "ghost: unknown recipient")
}

func TestSupervisorAgent_Nested(t *testing.T) {
	innerLLM := model.NewScriptedModel("inner",
		model.Step{Calls: []core.FunctionCall{sendMessagesCall("i1", "content-strategist", "ideas")}},
		model.Step{Text: "campaign plan"},
	)
	innerLead := newModelAgent(t, "social-media-campaign-manager", innerLLM)
	strategist := newModelAgent(t, "content-strategist", model.NewScriptedModel("strategist"))

	inner, err := NewSupervisorAgent(innerLead, []core.Agent{strategist})
	require.NoError(t, err)

	outerLLM := model.NewScriptedModel("outer",
		model.Step{Calls: []core.FunctionCall{sendMessagesCall("o1", "social-media-campaign-manager", "plan a campaign")}},
		model.Step{Text: "final answer"},
	)
	outerLead := newModelAgent(t, "Support Team Lead", outerLLM)
	complaint := newModelAgent(t, "Complaint Agent", model.NewScriptedModel("complaint"))

	outer, err := NewSupervisorAgent(outerLead, []core.Agent{complaint, inner})
	require.NoError(t, err)

	events, _, err := runAgent(t, outer, "launch a campaign")
	require.NoError(t, err)

	assert.NotEmpty(t, eventsOnBranch(events, "Support Team Lead.social-media-campaign-manager.content-strategist"))
	assert.Empty(t, eventsOnBranch(events, "Support Team Lead.Complaint Agent"))

	results := toolResults(outerLLM.Requests()[1])
	require.Len(t, results, 1)
	assert.Equal(t, "social-media-campaign-manager: campaign plan", results[0].Response)
	assert.Equal(t, "final answer", lastFinal(t, events).Text())
}

func TestSupervisorAgent_FanOutWithToolsAndState(t *testing.T) {
	leadLLM := model.NewScriptedModel("lead",
		model.Step{Calls: []core.FunctionCall{sendMessagesCall("c1",
			"news_analyst", "find news",
			"financial_analyst", "get data",
			"writer", "draft")}},
		model.Step{Text: "report done"},
	)
	lead := newModelAgent(t, "planner", leadLLM, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Plan research on {{topic}}.")
		o.OutputKey = "report"
	})

	member := func(name string) *ModelAgent {
		llm := model.NewScriptedModel(name,
			model.Step{Calls: []core.FunctionCall{{ID: name + "-1", Name: "lookup"}}},
			model.Step{Text: name + " answer"},
		)
		return newModelAgent(t, name, llm, func(o *ModelAgentOptions) {
			o.Instruction = NewInstructionFromText("Research {{topic}}.")
			o.Tools = []tool.Tool{echoTool("lookup")}
			o.OutputKey = name
		})
	}

	s, err := NewSupervisorAgent(lead, []core.Agent{member("news_analyst"), member("financial_analyst"), member("writer")})
	require.NoError(t, err)

	h := testutil.NewRunContext(context.Background(), s.Name(), "research TSLA")
	h.RunCtx.Session.SetState("topic", "TSLA")

	require.NoError(t, s.Run(h.RunCtx))

	events := h.Drain()
	final := lastFinal(t, events)
	assert.Equal(t, "report done", final.Text())
	assert.Equal(t, 0, final.Depth)

	nested := eventsOnBranch(events, "planner.writer")
	require.NotEmpty(t, nested)
	for _, ev := range nested {
		assert.Equal(t, 1, ev.Depth)
	}

	assert.Equal(t, "Plan research on TSLA.", strings.SplitN(leadLLM.Requests()[0].Instructions, "\n", 2)[0])

	for _, key := range []string{"report", "news_analyst", "financial_analyst", "writer"} {
		_, ok := h.RunCtx.GetState(key)
		assert.True(t, ok, key)
	}
	v, _ := h.RunCtx.GetState("writer")
	assert.Equal(t, "writer answer", v)
}
