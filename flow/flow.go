// Package flow runs a single agent turn.
//
// A flow builds a model request from the agent's instructions, the branch
// history and the current input, calls the model, executes requested tools
// and loops until the model produces a final answer, a tool hands control to
// another agent, or the agent's tool recursion limit is exhausted.
package flow

import (
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

// Flow defines the interface for agent execution flows.
//
// Execute returns an event channel and an error channel; both are closed
// when the turn ends. At most one error is sent.
type Flow interface {
	Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error)
}

// FlowAgent defines what a flow needs from an agent.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions returns the bound system prompt for this run.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the agent's tool registry. It may be nil.
	GetTools() *tool.Registry

	// IsStreamingEnabled returns whether streaming responses are enabled.
	IsStreamingEnabled() bool

	// MaxToolRecursions bounds the model calls of one turn. <= 0 is unlimited.
	MaxToolRecursions() int

	// GetCallbacks returns the agent's hooks.
	GetCallbacks() Callbacks
}

// Callbacks are optional hooks invoked while a flow runs. Nil fields are skipped.
type Callbacks struct {
	OnLLMStart    func(agent string, req model.Request)
	OnLLMNewToken func(token string)
	OnLLMEnd      func(agent string, resp model.Response)
	OnToolStart   func(agent string, call core.FunctionCall)
	OnToolEnd     func(agent string, call core.FunctionCall, result any, err error)
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before model execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes the response after receiving it from the LLM.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse inspects or rewrites a final model response.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
