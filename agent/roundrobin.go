package agent

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hupe1980/agentcrew/core"
)

// ErrUnbounded is returned for a team without turn limit or termination condition.
var ErrUnbounded = errors.New("team needs a turn limit or a termination condition")

// RoundRobinOption customizes a RoundRobinTeam.
type RoundRobinOption func(*RoundRobinTeam)

// WithMaxTurns limits the number of agent turns per request. <= 0 is unlimited.
func WithMaxTurns(n int) RoundRobinOption {
	return func(t *RoundRobinTeam) { t.maxTurns = n }
}

// WithTermination sets the condition checked after every turn.
func WithTermination(c TerminationCondition) RoundRobinOption {
	return func(t *RoundRobinTeam) { t.termination = c }
}

// WithDescription sets the team description used for routing.
func WithDescription(desc string) RoundRobinOption {
	return func(t *RoundRobinTeam) { t.SetDescription(desc) }
}

// RoundRobinTeam lets participants speak in a fixed order over one shared
// transcript. Every speaker receives the whole transcript, the team's
// earlier requests and answers included, as its input.
//
// A request ends when the turn limit is reached, the termination condition
// fires or a participant escalates. The last message is the team's answer.
type RoundRobinTeam struct {
	BaseAgent
	participants []core.Agent
	maxTurns     int
	termination  TerminationCondition
}

// NewRoundRobinTeam creates a round-robin team.
func NewRoundRobinTeam(name string, participants []core.Agent, opts ...RoundRobinOption) (*RoundRobinTeam, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("round robin %s: %w", name, ErrEmptyTeam)
	}

	t := &RoundRobinTeam{
		BaseAgent:    NewBaseAgent(name),
		participants: participants,
	}
	t.bind(t)

	for _, o := range opts {
		o(t)
	}

	if t.maxTurns <= 0 && t.termination == nil {
		return nil, fmt.Errorf("round robin %s: %w", name, ErrUnbounded)
	}

	if err := t.SetSubAgents(participants...); err != nil {
		return nil, fmt.Errorf("round robin %s: %w", name, err)
	}

	return t, nil
}

// Run implements core.Agent.
func (t *RoundRobinTeam) Run(runCtx *core.RunContext) error {
	transcript := append(priorMessages(runCtx), Message{Source: userSource, Content: runCtx.UserContent.Text()})
	start := len(transcript)

	reason := "maximum number of turns reached"

	for turn := 0; t.maxTurns <= 0 || turn < t.maxTurns; turn++ {
		if err := runCtx.Err(); err != nil {
			return err
		}

		speaker := t.participants[turn%len(t.participants)]
		runCtx.LogDebug("agent.round_robin.turn", "team", t.Name(), "turn", turn+1, "speaker", speaker.Name())

		res, err := runChild(runCtx, speaker, childRun{input: renderTranscript(transcript), skipHistory: true})
		if err != nil {
			return fmt.Errorf("round robin turn %d failed for agent %s: %w", turn+1, speaker.Name(), err)
		}

		transcript = append(transcript, Message{Source: speaker.Name(), Content: res.Output})

		if res.Escalate {
			reason = fmt.Sprintf("%s escalated", speaker.Name())
			break
		}

		if t.termination != nil {
			if done, why := t.termination.Check(transcript[start-1:]); done {
				reason = why
				break
			}
		}
	}

	runCtx.LogInfo("agent.round_robin.stop", "team", t.Name(), "reason", reason, "turns", len(transcript)-start)

	return emitFinal(runCtx, t.Name(), transcript[len(transcript)-1].Content, map[string]string{
		"stop_reason": reason,
		"turns":       strconv.Itoa(len(transcript) - start),
	})
}

// priorMessages converts the team's branch history into transcript messages.
func priorMessages(runCtx *core.RunContext) []Message {
	history := runCtx.History()

	out := make([]Message, 0, len(history))
	for _, ev := range history {
		source := ev.Author
		if ev.IsUserTurn() {
			source = userSource
		}
		out = append(out, Message{Source: source, Content: ev.Text()})
	}

	return out
}
