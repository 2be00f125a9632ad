package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/model"
)

var profiles = []Profile{
	{Name: "Weather Agent", Description: "Specialized agent for giving weather condition from a city."},
	{Name: "Health Agent", Description: "Specialized agent for health topics."},
}

func callModel(args string, captured *model.Request) model.FuncModel {
	return func(_ context.Context, req model.Request) (model.Response, error) {
		if captured != nil {
			*captured = req
		}
		return model.NewToolCallResponse("", core.FunctionCall{ID: "1", Name: AnalyzePromptToolName, Arguments: args}), nil
	}
}

func TestModelClassifier_ToolCall(t *testing.T) {
	var req model.Request

	c := NewModelClassifier(callModel(`{"userinput":"weather in Paris?","selected_agent":"weather-agent","confidence":0.95}`, &req))

	history := []core.Event{
		testutil.NewEventBuilder().UserText("hi").Build(),
		testutil.NewEventBuilder().Author("Health Agent").AssistantText("hello").Build(),
	}

	res, err := c.Classify(context.Background(), "weather in Paris?", profiles, history)
	require.NoError(t, err)
	require.NotNil(t, res.SelectedAgent)
	assert.Equal(t, "Weather Agent", res.SelectedAgent.Name)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Contains(t, res.Raw, "weather-agent")

	assert.Equal(t, AnalyzePromptToolName, req.ToolChoice)
	require.Len(t, req.Tools, 1)
	assert.Contains(t, req.Instructions, "weather-agent:Specialized agent for giving weather condition from a city.")
	assert.Contains(t, req.Instructions, "user: hi\nassistant: hello")
	assert.Equal(t, "weather in Paris?", req.Contents[0].Text())
}

func TestModelClassifier_UnknownAgent(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{name: "unknown", args: `{"userinput":"x","selected_agent":"unknown","confidence":0.2}`},
		{name: "empty", args: `{"userinput":"x","selected_agent":"","confidence":"0.1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewModelClassifier(callModel(tt.args, nil)).Classify(context.Background(), "x", profiles, nil)
			require.NoError(t, err)
			assert.Nil(t, res.SelectedAgent)
		})
	}
}

func TestModelClassifier_StringConfidence(t *testing.T) {
	res, err := NewModelClassifier(callModel(`{"selected_agent":"Health Agent","confidence":"0.7"}`, nil)).
		Classify(context.Background(), "x", profiles, nil)
	require.NoError(t, err)
	require.NotNil(t, res.SelectedAgent)
	assert.Equal(t, "Health Agent", res.SelectedAgent.Name)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
}

func TestModelClassifier_TextFallback(t *testing.T) {
	llm := model.FuncModel(func(context.Context, model.Request) (model.Response, error) {
		return model.NewTextResponse("Sure: {\"selected_agent\": \"health-agent\", \"confidence\": 0.8}"), nil
	})

	res, err := NewModelClassifier(llm).Classify(context.Background(), "x", profiles, nil)
	require.NoError(t, err)
	require.NotNil(t, res.SelectedAgent)
	assert.Equal(t, "Health Agent", res.SelectedAgent.Name)
}

func TestModelClassifier_NoDecision(t *testing.T) {
	llm := model.FuncModel(func(context.Context, model.Request) (model.Response, error) {
		return model.NewTextResponse("I cannot decide"), nil
	})

	_, err := NewModelClassifier(llm).Classify(context.Background(), "x", profiles, nil)
	assert.ErrorIs(t, err, ErrNoDecision)

	_, err = NewModelClassifier(callModel(`not json`, nil)).Classify(context.Background(), "x", profiles, nil)
	assert.ErrorIs(t, err, ErrNoDecision)
}

func TestModelClassifier_ModelError(t *testing.T) {
	llm := model.FuncModel(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{}, model.ErrRateLimited
	})

	_, err := NewModelClassifier(llm).Classify(context.Background(), "x", profiles, nil)
	assert.ErrorIs(t, err, model.ErrRateLimited)

	_, err = NewModelClassifier(nil).Classify(context.Background(), "x", profiles, nil)
	assert.Error(t, err)
}

func TestModelClassifier_CustomInstruction(t *testing.T) {
	var req model.Request

	c := NewModelClassifier(callModel(`{"selected_agent":"Health Agent","confidence":1}`, &req), func(o *ModelClassifierOptions) {
		o.Instruction = "Route for {{company}}:\n{{agent_descriptions}}"
		o.Variables = map[string]string{"company": "ACME"}
	})

	_, err := c.Classify(context.Background(), "x", profiles, nil)
	require.NoError(t, err)
	assert.Contains(t, req.Instructions, "Route for ACME:")
	assert.Contains(t, req.Instructions, "health-agent:")
}

func TestStatic(t *testing.T) {
	res, err := NewStatic("Health Agent").Classify(context.Background(), "anything", profiles, nil)
	require.NoError(t, err)
	require.NotNil(t, res.SelectedAgent)
	assert.Equal(t, "Health Agent", res.SelectedAgent.Name)
	assert.Equal(t, 1.0, res.Confidence)

	res, err = NewStatic("missing").Classify(context.Background(), "anything", profiles, nil)
	require.NoError(t, err)
	assert.Nil(t, res.SelectedAgent)
}

func TestFunc(t *testing.T) {
	boom := errors.New("boom")
	c := Func(func(context.Context, string, []Profile, []core.Event) (*Result, error) { return nil, boom })

	_, err := c.Classify(context.Background(), "x", nil, nil)
	assert.ErrorIs(t, err, boom)
}

func TestFind(t *testing.T) {
	assert.Nil(t, Find(profiles, ""))
	assert.Nil(t, Find(profiles, "nobody"))
	assert.Equal(t, "Weather Agent", Find(profiles, "weather agent").Name)
	assert.Equal(t, "weather-agent", profiles[0].ID())
}
