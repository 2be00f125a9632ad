package flow

import (
	"fmt"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
)

// InstructionsProcessor resolves the agent's system prompt.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets the request instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	req.Instructions = instructions

	return nil
}

// ContentsProcessor adds the branch history and the current input.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest replaces the request contents with history plus input.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, _ FlowAgent) error {
	history := runCtx.History()

	contents := make([]core.Content, 0, len(history)+1)
	for _, ev := range history {
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			contents = append(contents, *ev.Content)
		}
	}

	if len(runCtx.UserContent.Parts) > 0 {
		input := runCtx.UserContent
		if input.Role == "" {
			input.Role = core.RoleUser
		}
		contents = append(contents, input)
	}

	req.Contents = contents

	return nil
}

// ToolsProcessor exposes the agent's tools to the model.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest sets the request tool definitions.
func (p *ToolsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, agent FlowAgent) error {
	if reg := agent.GetTools(); reg != nil && reg.Len() > 0 {
		req.Tools = reg.Definitions()
	}
	return nil
}
