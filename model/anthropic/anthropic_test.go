package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
)

func TestBuildMessages_ToolResultsAsUserTurn(t *testing.T) {
	contents := []core.Content{
		core.NewTextContent(core.RoleUser, "price of TSLA?"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID: "t1", Name: "get_stock_data", Arguments: `{"symbol":"TSLA"}`,
		}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: "t1", Name: "get_stock_data", Response: map[string]any{"price": 180.25},
		}}}},
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
	require.Len(t, msgs[2].Content, 1)
	assert.NotNil(t, msgs[2].Content[0].OfToolResult)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredFields([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, requiredFields([]any{"a", "b", 1}))
	assert.Nil(t, requiredFields(nil))
}

func TestGenerate_NonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "Hello there"}],
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`)
	}))
	t.Cleanup(srv.Close)

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})

	resp, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "be nice",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "hi")},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Content.Text())
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}
