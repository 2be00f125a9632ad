package flow

// Selector determines which flow to use based on agent capabilities.
type Selector struct{}

// NewSelector creates a new flow selector.
func NewSelector() *Selector { return &Selector{} }

// SelectFlow returns SingleAgentFlow for agents without tools and ToolFlow otherwise.
func (s *Selector) SelectFlow(agent FlowAgent) Flow {
	if reg := agent.GetTools(); reg == nil || reg.Len() == 0 {
		return NewSingleAgentFlow(agent)
	}
	return NewToolFlow(agent)
}
