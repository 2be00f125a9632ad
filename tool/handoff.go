package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/core"
)

// HandoffPrefix prefixes the names of generated handoff tools.
const HandoffPrefix = "transfer_to_"

// handoffTool hands the conversation to a fixed target agent.
type handoffTool struct {
	target      string
	description string
}

// NewHandoffTool returns a tool named transfer_to_<target> that records a
// transfer action. Calling it ends the current agent's turn.
func NewHandoffTool(target, description string) Tool {
	if description == "" {
		description = fmt.Sprintf("Hand off the conversation to %s.", target)
	}
	return &handoffTool{target: target, description: description}
}

// HandoffToolName returns the tool name used for a handoff to target.
func HandoffToolName(target string) string {
	return HandoffPrefix + strings.ReplaceAll(strings.TrimSpace(target), " ", "_")
}

func (t *handoffTool) Name() string { return HandoffToolName(t.target) }

func (t *handoffTool) Description() string { return t.description }

func (t *handoffTool) Parameters() map[string]any { return Schema() }

func (t *handoffTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	tc.TransferToAgent(t.target)
	return fmt.Sprintf("Transferred to %s, adopting the role of %s immediately.", t.target, t.target), nil
}
