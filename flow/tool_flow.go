package flow

// ToolFlow extends the plain flow with tool definitions so the model can
// call the agent's tools and hand off to other agents.
type ToolFlow struct{ *BaseFlow }

// NewToolFlow creates a flow with instruction, contents and tools processors.
func NewToolFlow(agent FlowAgent) *ToolFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewToolsProcessor())

	return &ToolFlow{BaseFlow: baseFlow}
}
