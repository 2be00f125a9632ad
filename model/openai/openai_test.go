package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewModel(func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test"
		o.Model = "test-model"
		o.MaxRetries = 0
	})
}

func TestBuildMessages_ToolResponsesFollowCalls(t *testing.T) {
	req := model.Request{
		Instructions: "be brief",
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "weather in Paris?"),
			{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID: "c1", Name: "get_weather", Arguments: `{"location":"Paris"}`,
			}}}},
			{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
				ID: "c1", Name: "get_weather", Response: "It is sunny in Paris with 30 celsius!",
			}}}},
		},
	}

	responses, order := collectToolResponses(req)
	msgs := buildMessages(req, responses, order)

	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
}

func TestWithPreset(t *testing.T) {
	t.Setenv("DS_API_KEY", "ds-key")

	var o Options
	WithPreset(PresetDeepSeek)(&o)
	assert.Equal(t, "https://api.deepseek.com/v1", o.BaseURL)
	assert.Equal(t, "deepseek-chat", o.Model)
	assert.Equal(t, "ds-key", o.APIKey)

	var l Options
	WithPreset(PresetLiteLLM)(&l)
	assert.Equal(t, "123", l.APIKey)
}

func TestGenerate_NonStreaming(t *testing.T) {
	var got map[string]any

	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "c1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"location\":\"Paris\"}"}}]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	})

	resp, err := model.Collect(context.Background(), m, model.Request{
		Contents:   []core.Content{core.NewTextContent(core.RoleUser, "weather?")},
		Tools:      []model.ToolDefinition{model.NewToolDefinition("get_weather", "weather", map[string]any{"type": "object"})},
		ToolChoice: model.ToolChoiceRequired,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "tool_calls", resp.FinishReason)
	calls := resp.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "test-model", got["model"])
	assert.Equal(t, "required", got["tool_choice"])
}

func TestGenerate_ErrorMapping(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"message": "slow down", "type": "rate_limit"}}`)
	})

	_, err := model.Collect(context.Background(), m, model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRateLimited)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-x"; o.APIKey = "k" })
	assert.Equal(t, model.Info{Name: "gpt-x", Provider: "openai", SupportsTools: true}, m.Info())
}
