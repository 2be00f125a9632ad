// Package bedrock implements model.Model on top of the Amazon Bedrock
// Converse and ConverseStream APIs. Any Converse-capable foundation model
// (Nova, Claude, Llama, ...) can be addressed through its model or inference
// profile id.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
)

// Well-known inference profile ids.
const (
	ModelNovaPro        = "us.amazon.nova-pro-v1:0"
	ModelNovaLite       = "us.amazon.nova-lite-v1:0"
	ModelClaude35Sonnet = "us.anthropic.claude-3-5-sonnet-20241022-v2:0"
)

// converseAPI abstracts the Bedrock runtime methods for testability.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Options configure the Bedrock adapter.
type Options struct {
	ModelID     string
	Region      string
	MaxTokens   int32
	Temperature float32
	TopP        float32

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// Timeout bounds a single HTTP round trip (connect + read).
	Timeout time.Duration
	// MaxAttempts configures SDK retries. Zero keeps the SDK default.
	MaxAttempts int
}

func defaultOptions() Options {
	return Options{
		ModelID:     ModelNovaPro,
		Region:      "us-east-1",
		MaxTokens:   3000,
		Temperature: 0.7,
		TopP:        0.9,
		Timeout:     120 * time.Second,
	}
}

// Model wraps a Bedrock runtime client behind model.Model.
type Model struct {
	client converseAPI
	opts   Options
}

// NewModel loads AWS configuration and creates a Bedrock model.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(opts.Timeout)),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	if opts.MaxAttempts > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(opts.MaxAttempts))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Model{client: bedrockruntime.NewFromConfig(awsCfg), opts: opts}, nil
}

// NewModelFromClient creates a Model from an existing runtime client.
func NewModelFromClient(client *bedrockruntime.Client, optFns ...func(o *Options)) *Model {
	return newModelWithClient(client, optFns...)
}

func newModelWithClient(client converseAPI, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		input := m.toConverseInput(req)

		if req.Stream {
			m.handleStreaming(ctx, input, out, errCh)
			return
		}

		output, err := m.client.Converse(ctx, input)
		if err != nil {
			errCh <- mapError(err)
			return
		}

		resp, err := fromConverseOutput(output)
		if err != nil {
			errCh <- err
			return
		}

		out <- resp
	}()

	return out, errCh
}

func (m *Model) toConverseInput(req model.Request) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(m.opts.ModelID),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(m.opts.MaxTokens),
			Temperature: aws.Float32(m.opts.Temperature),
		},
		Messages: toMessages(req.Contents),
	}
	if m.opts.TopP > 0 {
		input.InferenceConfig.TopP = aws.Float32(m.opts.TopP)
	}

	if req.Instructions != "" {
		input.System = append(input.System, &types.SystemContentBlockMemberText{Value: req.Instructions})
	}
	for _, c := range req.Contents {
		if c.Role == "system" && c.Text() != "" {
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: c.Text()})
		}
	}

	if len(req.Tools) > 0 {
		input.ToolConfig = toToolConfig(req.Tools, req.ToolChoice)
	}

	return input
}

// toMessages converts contents into Converse messages. Tool results become a
// user message placed directly after the assistant turn that requested them.
func toMessages(contents []core.Content) []types.Message {
	results := map[string]core.FunctionResponse{}
	for _, c := range contents {
		if c.Role != core.RoleTool {
			continue
		}
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok && fr.FunctionResponse.ID != "" {
				results[fr.FunctionResponse.ID] = fr.FunctionResponse
			}
		}
	}

	var msgs []types.Message

	for _, c := range contents {
		switch c.Role {
		case "system", core.RoleTool:
			continue
		case core.RoleAssistant:
			msg := types.Message{Role: types.ConversationRoleAssistant}
			if text := c.Text(); text != "" {
				msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: text})
			}

			var resultBlocks []types.ContentBlock
			for _, p := range c.Parts {
				fc, ok := p.(core.FunctionCallPart)
				if !ok {
					continue
				}

				inputDoc := map[string]any{}
				if fc.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(fc.FunctionCall.Arguments), &inputDoc)
				}

				msg.Content = append(msg.Content, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(fc.FunctionCall.ID),
					Name:      aws.String(fc.FunctionCall.Name),
					Input:     document.NewLazyDocument(inputDoc),
				}})

				if fr, ok := results[fc.FunctionCall.ID]; ok {
					resultBlocks = append(resultBlocks, toolResultBlock(fr))
				}
			}

			if len(msg.Content) == 0 {
				continue
			}
			msgs = append(msgs, msg)

			if len(resultBlocks) > 0 {
				msgs = append(msgs, types.Message{Role: types.ConversationRoleUser, Content: resultBlocks})
			}
		default:
			text := c.Text()
			if strings.TrimSpace(text) == "" {
				continue
			}
			msgs = append(msgs, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
			})
		}
	}

	return msgs
}

func toolResultBlock(fr core.FunctionResponse) types.ContentBlock {
	block := types.ToolResultBlock{
		ToolUseId: aws.String(fr.ID),
		Content: []types.ToolResultContentBlock{
			&types.ToolResultContentBlockMemberText{Value: model.FormatToolResult(fr)},
		},
	}
	if fr.Error != "" {
		block.Status = types.ToolResultStatusError
	}
	return &types.ContentBlockMemberToolResult{Value: block}
}

func toToolConfig(tools []model.ToolDefinition, choice string) *types.ToolConfiguration {
	cfg := &types.ToolConfiguration{}

	for _, t := range tools {
		schema := t.Function.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}

		cfg.Tools = append(cfg.Tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Function.Name),
				Description: aws.String(t.Function.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}

	switch choice {
	case model.ToolChoiceAuto:
	case model.ToolChoiceRequired:
		cfg.ToolChoice = &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}
	default:
		cfg.ToolChoice = &types.ToolChoiceMemberTool{Value: types.SpecificToolChoice{Name: aws.String(choice)}}
	}

	return cfg
}

func fromConverseOutput(output *bedrockruntime.ConverseOutput) (model.Response, error) {
	resp := model.Response{
		Content:      core.Content{Role: core.RoleAssistant},
		FinishReason: finishReason(output.StopReason),
		Usage:        convertUsage(output.Usage),
	}

	outMsg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}

	for _, block := range outMsg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			if b.Value != "" {
				resp.Content.Parts = append(resp.Content.Parts, core.TextPart{Text: b.Value})
			}
		case *types.ContentBlockMemberToolUse:
			args, err := marshalDocument(b.Value.Input)
			if err != nil {
				return model.Response{}, fmt.Errorf("bedrock: tool %s input: %w", aws.ToString(b.Value.Name), err)
			}
			resp.Content.Parts = append(resp.Content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			}})
		}
	}

	return resp, nil
}

type streamToolUse struct {
	id, name string
	input    strings.Builder
}

func (m *Model) handleStreaming(
	ctx context.Context,
	ci *bedrockruntime.ConverseInput,
	out chan<- model.Response,
	errCh chan<- error,
) {
	output, err := m.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         ci.ModelId,
		Messages:        ci.Messages,
		System:          ci.System,
		InferenceConfig: ci.InferenceConfig,
		ToolConfig:      ci.ToolConfig,
	})
	if err != nil {
		errCh <- mapError(err)
		return
	}

	stream := output.GetStream()
	defer stream.Close()

	var (
		text  strings.Builder
		usage *model.TokenUsage
		stop  types.StopReason
	)

	toolUses := map[int32]*streamToolUse{}

	for evt := range stream.Events() {
		switch e := evt.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			if start, ok := e.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
				toolUses[aws.ToInt32(e.Value.ContentBlockIndex)] = &streamToolUse{
					id:   aws.ToString(start.Value.ToolUseId),
					name: aws.ToString(start.Value.Name),
				}
			}
		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch d := e.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				if d.Value == "" {
					continue
				}
				text.WriteString(d.Value)
				select {
				case out <- model.Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, d.Value)}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			case *types.ContentBlockDeltaMemberToolUse:
				if tu, ok := toolUses[aws.ToInt32(e.Value.ContentBlockIndex)]; ok {
					tu.input.WriteString(aws.ToString(d.Value.Input))
				}
			}
		case *types.ConverseStreamOutputMemberMessageStop:
			stop = e.Value.StopReason
		case *types.ConverseStreamOutputMemberMetadata:
			usage = convertUsage(e.Value.Usage)
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- mapError(err)
		return
	}

	resp := model.Response{
		Content:      core.Content{Role: core.RoleAssistant},
		FinishReason: finishReason(stop),
		Usage:        usage,
	}
	if text.Len() > 0 {
		resp.Content.Parts = append(resp.Content.Parts, core.TextPart{Text: text.String()})
	}

	indexes := make([]int32, 0, len(toolUses))
	for idx := range toolUses {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	for _, idx := range indexes {
		tu := toolUses[idx]
		args := tu.input.String()
		if args == "" {
			args = "{}"
		}
		resp.Content.Parts = append(resp.Content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID: tu.id, Name: tu.name, Arguments: args,
		}})
	}

	out <- resp
}

func finishReason(r types.StopReason) string {
	switch r {
	case types.StopReasonToolUse:
		return "tool_calls"
	case types.StopReasonMaxTokens:
		return "length"
	case "", types.StopReasonEndTurn, types.StopReasonStopSequence:
		return "stop"
	default:
		return string(r)
	}
}

func convertUsage(u *types.TokenUsage) *model.TokenUsage {
	if u == nil {
		return nil
	}
	in := int(aws.ToInt32(u.InputTokens))
	outTokens := int(aws.ToInt32(u.OutputTokens))
	return &model.TokenUsage{PromptTokens: in, CompletionTokens: outTokens, TotalTokens: in + outTokens}
}

// marshalDocument converts a Bedrock document to a JSON string. A nil or
// null document is an empty object.
func marshalDocument(doc document.Interface) (string, error) {
	if doc == nil {
		return "{}", nil
	}

	data, err := doc.MarshalSmithyDocument()
	if err != nil {
		return "", err
	}

	if trimmed := strings.TrimSpace(string(data)); trimmed == "" || trimmed == "null" {
		return "{}", nil
	}

	return string(data), nil
}

func mapError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case code == "ThrottlingException" || code == "TooManyRequestsException":
			return fmt.Errorf("bedrock: %w: %w", model.ErrRateLimited, err)
		case code == "AccessDeniedException" || code == "UnrecognizedClientException" ||
			code == "ExpiredTokenException":
			return fmt.Errorf("bedrock: %w: %w", model.ErrAuth, err)
		case code == "ValidationException" && strings.Contains(apiErr.ErrorMessage(), "too long"):
			return fmt.Errorf("bedrock: %w: %w", model.ErrContextOverflow, err)
		case code == "ModelNotReadyException" || code == "ServiceUnavailableException" ||
			code == "InternalServerException" || code == "ModelTimeoutException":
			return fmt.Errorf("bedrock: %w: %w", model.ErrUnavailable, err)
		}
	}
	return fmt.Errorf("bedrock: %w", err)
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.ModelID, Provider: "bedrock", SupportsTools: true}
}
