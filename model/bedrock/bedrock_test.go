package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
)

type mockClient struct {
	converseFunc func(ctx context.Context, params *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error)
}

func (m *mockClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return m.converseFunc(ctx, params)
}

func (m *mockClient) ConverseStream(context.Context, *bedrockruntime.ConverseStreamInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, errors.New("not implemented")
}

func TestGenerate_Text(t *testing.T) {
	var received *bedrockruntime.ConverseInput

	client := &mockClient{converseFunc: func(_ context.Context, params *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
		received = params
		return &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{Value: types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "Hello from Bedrock!"}},
			}},
			StopReason: types.StopReasonEndTurn,
			Usage:      &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(5)},
		}, nil
	}}

	m := newModelWithClient(client)

	resp, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "You are helpful.",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "Hello")},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Hello from Bedrock!", resp.Content.Text())
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	require.NotNil(t, received)
	assert.Equal(t, ModelNovaPro, aws.ToString(received.ModelId))
	assert.Equal(t, int32(3000), aws.ToInt32(received.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.7, aws.ToFloat32(received.InferenceConfig.Temperature), 0.001)
	assert.InDelta(t, 0.9, aws.ToFloat32(received.InferenceConfig.TopP), 0.001)
	require.Len(t, received.System, 1)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, types.ConversationRoleUser, received.Messages[0].Role)
}

func TestGenerate_ToolUse(t *testing.T) {
	client := &mockClient{converseFunc: func(_ context.Context, params *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
		if assert.NotNil(t, params.ToolConfig) {
			assert.Len(t, params.ToolConfig.Tools, 1)
			_, isAny := params.ToolConfig.ToolChoice.(*types.ToolChoiceMemberAny)
			assert.True(t, isAny)
		}

		return &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String("tu-1"),
					Name:      aws.String("get_weather"),
					Input:     document.NewLazyDocument(map[string]any{"location": "Paris"}),
				}}},
			}},
			StopReason: types.StopReasonToolUse,
		}, nil
	}}

	m := newModelWithClient(client)

	resp, err := model.Collect(context.Background(), m, model.Request{
		Contents:   []core.Content{core.NewTextContent(core.RoleUser, "weather in Paris")},
		Tools:      []model.ToolDefinition{model.NewToolDefinition("get_weather", "Get weather", map[string]any{"type": "object"})},
		ToolChoice: model.ToolChoiceRequired,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "tool_calls", resp.FinishReason)
	calls := resp.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tu-1", calls[0].ID)
	assert.JSONEq(t, `{"location":"Paris"}`, calls[0].Arguments)
}

func TestMarshalDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  document.Interface
		want string
	}{
		{"nil", nil, `{}`},
		{"null", document.NewLazyDocument(nil), `{}`},
		{"flat", document.NewLazyDocument(map[string]any{"location": "Paris"}), `{"location":"Paris"}`},
		{"nested", document.NewLazyDocument(map[string]any{
			"messages": []any{map[string]any{"recipient": "writer", "content": "draft"}},
			"limit":    3,
		}), `{"messages":[{"recipient":"writer","content":"draft"}],"limit":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalDocument(tt.doc)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestToMessages_ToolResultFollowsToolUse(t *testing.T) {
	msgs := toMessages([]core.Content{
		core.NewTextContent(core.RoleUser, "weather?"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID: "tu-1", Name: "get_weather", Arguments: `{"location":"Paris"}`,
		}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: "tu-1", Name: "get_weather", Error: "boom",
		}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, types.ConversationRoleAssistant, msgs[1].Role)
	assert.Equal(t, types.ConversationRoleUser, msgs[2].Role)

	result, ok := msgs[2].Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, "tu-1", aws.ToString(result.Value.ToolUseId))
	assert.Equal(t, types.ToolResultStatusError, result.Value.Status)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		code string
		msg  string
		want error
	}{
		{"ThrottlingException", "slow down", model.ErrRateLimited},
		{"AccessDeniedException", "denied", model.ErrAuth},
		{"ValidationException", "Input is too long for requested model", model.ErrContextOverflow},
		{"ServiceUnavailableException", "down", model.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := mapError(&smithy.GenericAPIError{Code: tt.code, Message: tt.msg})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	err := mapError(errors.New("plain"))
	assert.EqualError(t, err, "bedrock: plain")
}

func TestInfo(t *testing.T) {
	m := newModelWithClient(&mockClient{}, func(o *Options) { o.ModelID = ModelNovaLite })
	assert.Equal(t, model.Info{Name: ModelNovaLite, Provider: "bedrock", SupportsTools: true}, m.Info())
}
