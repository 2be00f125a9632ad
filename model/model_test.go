package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
)

func userReq(text string, stream bool) Request {
	return Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, text)}, Stream: stream}
}

func TestMockModel_CannedAndDefault(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hi", "hello")

	resp, err := Collect(context.Background(), m, userReq("hi", false), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content.Text())

	resp, err = Collect(context.Background(), m, userReq("other", false), nil)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Content.Text())
}

func TestMockModel_StreamsPartials(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hi", "abc")

	var partials string
	resp, err := Collect(context.Background(), m, userReq("hi", true), func(r Response) {
		partials += r.Content.Text()
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", partials)
	assert.Equal(t, "abc", resp.Content.Text())
}

func TestMockModel_NoContents(t *testing.T) {
	m := NewMockModel("mock", "mock")
	_, err := Collect(context.Background(), m, Request{}, nil)
	require.Error(t, err)
}

func TestScriptedModel_Sequence(t *testing.T) {
	call := core.FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"location":"Paris"}`}
	m := NewScriptedModel("scripted",
		Step{Calls: []core.FunctionCall{call}},
		Step{Text: "It is sunny"},
	)
	m.Fallback = "done"

	resp, err := Collect(context.Background(), m, userReq("weather?", false), nil)
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	require.Len(t, resp.FunctionCalls(), 1)
	assert.Equal(t, "get_weather", resp.FunctionCalls()[0].Name)

	resp, err = Collect(context.Background(), m, userReq("weather?", false), nil)
	require.NoError(t, err)
	assert.Equal(t, "It is sunny", resp.Content.Text())

	resp, err = Collect(context.Background(), m, userReq("again", false), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content.Text())

	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, "again", m.Requests()[2].Contents[0].Text())
}

func TestScriptedModel_Error(t *testing.T) {
	m := NewScriptedModel("scripted", Step{Err: ErrRateLimited})
	_, err := Collect(context.Background(), m, userReq("x", false), nil)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestScriptedModel_StreamWords(t *testing.T) {
	m := NewScriptedModel("scripted", Step{Text: "one two three"})
	var chunks []string
	resp, err := Collect(context.Background(), m, userReq("x", true), func(r Response) {
		chunks = append(chunks, r.Content.Text())
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one ", "two ", "three"}, chunks)
	assert.Equal(t, "one two three", resp.Content.Text())
}

func TestFuncModel(t *testing.T) {
	m := FuncModel(func(_ context.Context, req Request) (Response, error) {
		if req.Instructions == "" {
			return Response{}, errors.New("no instructions")
		}
		return NewTextResponse(req.Instructions), nil
	})

	_, err := Collect(context.Background(), m, Request{}, nil)
	require.Error(t, err)

	resp, err := Collect(context.Background(), m, Request{Instructions: "sys"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sys", resp.Content.Text())
}

func TestCollect_EmptyGeneration(t *testing.T) {
	m := FuncModel(func(context.Context, Request) (Response, error) { return Response{}, nil })
	// FuncModel always sends a final chunk, so build an empty model inline.
	empty := emptyModel{}
	_, err := Collect(context.Background(), empty, Request{}, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = Collect(context.Background(), m, Request{}, nil)
	assert.NoError(t, err)
}

type emptyModel struct{}

func (emptyModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	r := make(chan Response)
	e := make(chan error)
	close(r)
	close(e)
	return r, e
}

func (emptyModel) Info() Info { return Info{Name: "empty"} }

func TestFormatToolResult(t *testing.T) {
	assert.Equal(t, "plain", FormatToolResult(core.FunctionResponse{Response: "plain"}))
	assert.Equal(t, `{"error":"boom"}`, FormatToolResult(core.FunctionResponse{Error: "boom"}))
	assert.Equal(t, `{"price":1.5}`, FormatToolResult(core.FunctionResponse{Response: map[string]any{"price": 1.5}}))
	assert.Equal(t, "", FormatToolResult(core.FunctionResponse{}))
}
