package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// NewTextResponse builds a final assistant response carrying plain text.
func NewTextResponse(text string) Response {
	return Response{
		Content:      core.NewTextContent(core.RoleAssistant, text),
		FinishReason: "stop",
	}
}

// NewToolCallResponse builds a final assistant response requesting tool calls.
func NewToolCallResponse(text string, calls ...core.FunctionCall) Response {
	content := core.Content{Role: core.RoleAssistant}
	if text != "" {
		content.Parts = append(content.Parts, core.TextPart{Text: text})
	}
	for _, c := range calls {
		content.Parts = append(content.Parts, core.FunctionCallPart{FunctionCall: c})
	}
	return Response{Content: content, FinishReason: "tool_calls"}
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
type MockModel struct {
	info      Info
	mu        sync.RWMutex
	responses map[string]string
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		inputText := req.Contents[len(req.Contents)-1].Text()

		m.mu.RLock()
		full := m.responses[inputText]
		m.mu.RUnlock()

		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, string(r))}:
				}
			}
		}

		respCh <- NewTextResponse(full)
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// Step is one scripted turn of a ScriptedModel.
type Step struct {
	Text  string
	Calls []core.FunctionCall
	Err   error
}

// ScriptedModel replays a fixed sequence of turns and records every request.
// Once the script is exhausted it answers with Fallback (or an echo of the
// last user text when Fallback is empty).
type ScriptedModel struct {
	Fallback string

	info     Info
	mu       sync.Mutex
	steps    []Step
	requests []Request
}

// NewScriptedModel creates a ScriptedModel with the given turns.
func NewScriptedModel(name string, steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: name, Provider: "mock", SupportsTools: true},
		steps: steps,
	}
}

// Then appends a turn to the script.
func (m *ScriptedModel) Then(step Step) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step)
	return m
}

// Requests returns a copy of all requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls reports how many times Generate was invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *ScriptedModel) next(req Request) Step {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.steps) > 0 {
		s := m.steps[0]
		m.steps = m.steps[1:]
		return s
	}

	if m.Fallback != "" {
		return Step{Text: m.Fallback}
	}

	var last string
	if n := len(req.Contents); n > 0 {
		last = req.Contents[n-1].Text()
	}

	return Step{Text: fmt.Sprintf("Mock response to: %s", last)}
}

// Generate implements Model. Streaming requests receive word-sized partials.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	step := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if step.Err != nil {
			errCh <- step.Err
			return
		}

		if req.Stream && step.Text != "" {
			for _, w := range strings.SplitAfter(step.Text, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, w)}:
				}
			}
		}

		if len(step.Calls) > 0 {
			respCh <- NewToolCallResponse(step.Text, step.Calls...)
			return
		}

		respCh <- NewTextResponse(step.Text)
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// FuncModel adapts a plain function into a non-streaming Model.
type FuncModel func(ctx context.Context, req Request) (Response, error)

// Generate implements Model.
func (f FuncModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		resp, err := f(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		resp.Partial = false
		respCh <- resp
	}()

	return respCh, errCh
}

// Info implements Model.
func (f FuncModel) Info() Info {
	return Info{Name: "func", Provider: "mock", SupportsTools: true}
}
