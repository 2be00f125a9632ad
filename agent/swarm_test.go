package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

func TestNewSwarm_Validation(t *testing.T) {
	_, err := NewSwarm("swarm", nil)
	assert.ErrorIs(t, err, ErrEmptyTeam)

	planner := newModelAgent(t, "planner", nil)

	_, err = NewSwarm("swarm", []SwarmMember{{Agent: planner, Handoffs: []string{"ghost"}}})
	assert.ErrorIs(t, err, ErrUnknownHandoff)

	_, err = NewSwarm("swarm", []SwarmMember{{Agent: planner}, {Agent: newModelAgent(t, "planner", nil)}})
	assert.ErrorIs(t, err, ErrDuplicateAgent)

	_, err = NewSwarm("swarm", []SwarmMember{{Agent: nil}})
	assert.ErrorIs(t, err, ErrInvalidAgent)
}

func TestSwarm_HandoffAndSpeakerPersistence(t *testing.T) {
	plannerLLM := model.NewScriptedModel("planner",
		model.Step{Calls: []core.FunctionCall{{ID: "h1", Name: tool.HandoffToolName("analyst"), Arguments: "{}"}}},
	)
	analystLLM := model.NewScriptedModel("analyst",
		model.Step{Text: "TSLA is up. TERMINATE"},
		model.Step{Text: "Still up. TERMINATE"},
	)

	planner := newModelAgent(t, "planner", plannerLLM, func(o *ModelAgentOptions) { o.Description = "plans research" })
	analyst := newModelAgent(t, "analyst", analystLLM, func(o *ModelAgentOptions) { o.Description = "analyzes stocks" })

	swarm, err := NewSwarm("research", []SwarmMember{
		{Agent: planner, Handoffs: []string{"analyst"}},
		{Agent: analyst, Handoffs: []string{"planner"}},
	}, func(o *SwarmOptions) {
		o.Termination = TextMention("TERMINATE")
	})
	require.NoError(t, err)

	assert.False(t, planner.HasTool(tool.HandoffToolName("analyst")))

	events, h, err := runAgent(t, swarm, "analyze TSLA")
	require.NoError(t, err)

	final := lastFinal(t, events)
	assert.Equal(t, "TSLA is up. TERMINATE", final.Text())
	assert.Equal(t, "analyst", final.Metadata["speaker"])
	assert.Equal(t, "2", final.Metadata["turns"])

	analystReqs := analystLLM.Requests()
	require.Len(t, analystReqs, 1)
	assert.Contains(t, analystReqs[0].Contents[0].Text(),
		"planner: Transferred to analyst, adopting the role of analyst immediately.")

	plannerReqs := plannerLLM.Requests()
	require.Len(t, plannerReqs, 1)
	require.Len(t, plannerReqs[0].Tools, 1)
	assert.Equal(t, "transfer_to_analyst", plannerReqs[0].Tools[0].Function.Name)

	speaker, ok := h.RunCtx.GetState("swarm:research:speaker")
	require.True(t, ok)
	assert.Equal(t, "analyst", speaker)

	second, err := nextTurn(t, h, swarm, "run-2", "and tomorrow?", events)
	require.NoError(t, err)

	assert.Equal(t, "Still up. TERMINATE", lastFinal(t, second).Text())
	assert.Equal(t, 1, plannerLLM.Calls())
	assert.Equal(t, 2, analystLLM.Calls())
}

func TestSwarm_MaxTurns(t *testing.T) {
	llm := model.NewScriptedModel("solo")
	llm.Fallback = "thinking"

	solo := newModelAgent(t, "solo", llm)

	swarm, err := NewSwarm("swarm", []SwarmMember{{Agent: solo}}, func(o *SwarmOptions) { o.MaxTurns = 2 })
	require.NoError(t, err)

	events, _, err := runAgent(t, swarm, "go")
	require.NoError(t, err)

	final := lastFinal(t, events)
	assert.Equal(t, "maximum number of turns reached", final.Metadata["stop_reason"])
	assert.Equal(t, "2", final.Metadata["turns"])
	assert.Equal(t, 2, llm.Calls())
}
