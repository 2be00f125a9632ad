package agent

import (
	"context"

	"github.com/hupe1980/agentcrew/core"
)

// childRun configures one nested agent execution.
type childRun struct {
	input string
	// skipHistory hides the child's branch history; used when input already
	// carries the shared transcript.
	skipHistory bool
	// ctx overrides the parent's context when set.
	ctx context.Context
}

// childResult is what a composition learns from a nested agent run.
type childResult struct {
	Output   string
	Transfer string
	Escalate bool
}

// runChild runs child in its own branch below runCtx. The input is recorded
// as a user turn on the child's branch, every child event is forwarded to the
// parent, and the last final answer of the child's own branch is returned.
func runChild(runCtx *core.RunContext, child core.Agent, cr childRun) (childResult, error) {
	ch := make(chan core.Event, 64)
	input := core.NewTextContent(core.RoleUser, cr.input)

	childCtx := runCtx.NewChildContext(ch, core.AgentInfo{Name: child.Name(), Type: kindOf(child)}, input)
	childCtx.SkipHistory = cr.skipHistory
	if cr.ctx != nil {
		childCtx.Context = cr.ctx
	}

	done := make(chan error, 1)

	go func() {
		defer close(ch)

		turn := input
		if err := childCtx.EmitEvent(core.NewUserContentEvent(runCtx.RunID, &turn)); err != nil {
			done <- err
			return
		}

		done <- child.Run(childCtx)
	}()

	var (
		res        childResult
		forwardErr error
	)

	for ev := range ch {
		if ev.Branch == childCtx.Branch {
			observe(&res, ev)
		}

		if forwardErr == nil {
			forwardErr = runCtx.Forward(ev)
		}
	}

	if err := <-done; err != nil {
		return res, err
	}

	return res, forwardErr
}

func observe(res *childResult, ev core.Event) {
	if ev.Actions.TransferToAgent != nil {
		res.Transfer = *ev.Actions.TransferToAgent
	}
	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		res.Escalate = true
	}
	if ev.Content != nil && ev.Content.Role == core.RoleAssistant && ev.IsFinalResponse() {
		if text := ev.Text(); text != "" {
			res.Output = text
		}
	}
}

// emitFinal records a composition's answer on its own branch.
func emitFinal(runCtx *core.RunContext, author, text string, metadata map[string]string) error {
	ev := core.NewMessageEvent(runCtx.RunID, author, text)
	complete := true
	ev.TurnComplete = &complete
	ev.Metadata = metadata

	return runCtx.EmitEvent(ev)
}

// kindOf names the implementation of an agent for AgentInfo.Type.
func kindOf(a core.Agent) string {
	switch a.(type) {
	case *ModelAgent:
		return "model"
	case *ChainAgent:
		return "chain"
	case *SupervisorAgent:
		return "supervisor"
	case *RoundRobinTeam:
		return "round_robin"
	case *Swarm:
		return "swarm"
	case *UserProxyAgent:
		return "user_proxy"
	default:
		return "agent"
	}
}
