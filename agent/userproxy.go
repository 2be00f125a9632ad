package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentcrew/core"
)

// InputFunc asks a human for the next message. prompt is the conversation so
// far as presented to the participant.
type InputFunc func(ctx context.Context, prompt string) (string, error)

// ErrNoInputFunc is returned when a UserProxyAgent has no input function.
var ErrNoInputFunc = errors.New("user proxy has no input function")

// UserProxyAgent is a team participant whose messages come from a human.
type UserProxyAgent struct {
	BaseAgent
	input InputFunc
}

// NewUserProxyAgent creates a human-in-the-loop participant.
func NewUserProxyAgent(name string, input InputFunc) *UserProxyAgent {
	u := &UserProxyAgent{
		BaseAgent: NewBaseAgent(name),
		input:     input,
	}
	u.SetDescription("A human participant providing feedback and approval.")
	u.bind(u)
	return u
}

// Run implements core.Agent by asking for input and emitting it as the
// participant's answer.
func (u *UserProxyAgent) Run(runCtx *core.RunContext) error {
	if u.input == nil {
		return fmt.Errorf("agent %s: %w", u.Name(), ErrNoInputFunc)
	}

	text, err := u.input(runCtx.Context, runCtx.UserContent.Text())
	if err != nil {
		return fmt.Errorf("agent %s: input failed: %w", u.Name(), err)
	}

	return emitFinal(runCtx, u.Name(), text, nil)
}
