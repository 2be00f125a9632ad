package agent

import (
	"fmt"

	"github.com/hupe1980/agentcrew/core"
)

// ChainAgent runs its members in order as a pipeline. The first member gets
// the chain's input; every later member gets the previous member's answer.
// The last answer is the chain's answer.
//
// Each member runs in its own branch "<chain>.<member>" and keeps its own
// conversation history across requests.
type ChainAgent struct {
	BaseAgent
	children []core.Agent
}

// NewChainAgent creates a chain. It fails with ErrEmptyTeam when no members
// are given and with ErrDuplicateAgent when names collide.
func NewChainAgent(name string, children ...core.Agent) (*ChainAgent, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("chain %s: %w", name, ErrEmptyTeam)
	}

	c := &ChainAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
	c.bind(c)

	if err := c.SetSubAgents(children...); err != nil {
		return nil, fmt.Errorf("chain %s: %w", name, err)
	}

	return c, nil
}

// Run implements core.Agent. An error or a missing answer stops the chain.
func (c *ChainAgent) Run(runCtx *core.RunContext) error {
	input := runCtx.UserContent.Text()

	for i, child := range c.children {
		runCtx.LogDebug("agent.chain.step", "chain", c.Name(), "step", i+1, "agent", child.Name())

		res, err := runChild(runCtx, child, childRun{input: input})
		if err != nil {
			return fmt.Errorf("chain execution failed at agent %s: %w", child.Name(), err)
		}

		if res.Output == "" {
			return fmt.Errorf("chain execution failed at agent %s: %w", child.Name(), ErrNoOutput)
		}

		input = res.Output
	}

	return emitFinal(runCtx, c.Name(), input, nil)
}
