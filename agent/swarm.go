package agent

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
)

// DefaultSwarmMaxTurns bounds the agent turns of one swarm request.
const DefaultSwarmMaxTurns = 20

// ErrUnknownHandoff is returned when a swarm member declares a handoff to an
// agent that is not part of the swarm.
var ErrUnknownHandoff = errors.New("handoff target is not a swarm member")

// SwarmMember is a swarm participant together with the agents it may hand
// the conversation to.
type SwarmMember struct {
	Agent    *ModelAgent
	Handoffs []string
}

// SwarmOptions configures a Swarm.
type SwarmOptions struct {
	Description string
	MaxTurns    int
	Termination TerminationCondition
}

// Swarm lets members pass the conversation to each other with
// transfer_to_<name> tools. The current speaker keeps the floor until it
// hands off; the swarm stops on its termination condition or turn limit.
// The speaker at the end of a request starts the next one.
type Swarm struct {
	BaseAgent
	members     []*ModelAgent
	runners     map[string]*ModelAgent
	maxTurns    int
	termination TerminationCondition
}

// NewSwarm creates a swarm. The first member speaks first.
func NewSwarm(name string, members []SwarmMember, optFns ...func(o *SwarmOptions)) (*Swarm, error) {
	opts := SwarmOptions{MaxTurns: DefaultSwarmMaxTurns}
	for _, fn := range optFns {
		fn(&opts)
	}

	if len(members) == 0 {
		return nil, fmt.Errorf("swarm %s: %w", name, ErrEmptyTeam)
	}

	agents := make([]core.Agent, 0, len(members))
	for _, m := range members {
		if m.Agent == nil {
			return nil, fmt.Errorf("swarm %s: %w: member agent is nil", name, ErrInvalidAgent)
		}
		agents = append(agents, m.Agent)
	}

	if err := ValidateUniqueNames(agents...); err != nil {
		return nil, fmt.Errorf("swarm %s: %w", name, err)
	}

	s := &Swarm{
		BaseAgent:   NewBaseAgent(name),
		runners:     make(map[string]*ModelAgent, len(members)),
		maxTurns:    opts.MaxTurns,
		termination: opts.Termination,
	}
	if opts.Description != "" {
		s.SetDescription(opts.Description)
	}
	s.bind(s)

	names := make(map[string]*ModelAgent, len(members))
	for _, m := range members {
		names[m.Agent.Name()] = m.Agent
		s.members = append(s.members, m.Agent)
	}

	for _, m := range members {
		handoffs := make([]tool.Tool, 0, len(m.Handoffs))
		for _, target := range m.Handoffs {
			t, ok := names[target]
			if !ok {
				return nil, fmt.Errorf("swarm %s: %w: %s -> %s", name, ErrUnknownHandoff, m.Agent.Name(), target)
			}
			handoffs = append(handoffs, tool.NewHandoffTool(target, fmt.Sprintf("Hand off to %s: %s", target, t.Description())))
		}

		runner, err := m.Agent.derive(handoffs, "")
		if err != nil {
			return nil, fmt.Errorf("swarm %s: %w", name, err)
		}
		s.runners[m.Agent.Name()] = runner
	}

	if err := s.SetSubAgents(agents...); err != nil {
		return nil, fmt.Errorf("swarm %s: %w", name, err)
	}

	return s, nil
}

func (s *Swarm) speakerKey() string { return "swarm:" + s.Name() + ":speaker" }

// currentSpeaker returns the member that holds the floor.
func (s *Swarm) currentSpeaker(runCtx *core.RunContext) string {
	if v, ok := runCtx.GetState(s.speakerKey()); ok {
		if name, ok := v.(string); ok {
			if _, member := s.runners[name]; member {
				return name
			}
		}
	}
	return s.members[0].Name()
}

// Run implements core.Agent.
func (s *Swarm) Run(runCtx *core.RunContext) error {
	transcript := append(priorMessages(runCtx), Message{Source: userSource, Content: runCtx.UserContent.Text()})
	start := len(transcript)

	speaker := s.currentSpeaker(runCtx)
	reason := "maximum number of turns reached"

	for turn := 0; s.maxTurns <= 0 || turn < s.maxTurns; turn++ {
		if err := runCtx.Err(); err != nil {
			return err
		}

		runCtx.LogDebug("agent.swarm.turn", "swarm", s.Name(), "turn", turn+1, "speaker", speaker)

		res, err := runChild(runCtx, s.runners[speaker], childRun{input: renderTranscript(transcript), skipHistory: true})
		if err != nil {
			return fmt.Errorf("swarm turn %d failed for agent %s: %w", turn+1, speaker, err)
		}

		if res.Transfer != "" {
			if _, ok := s.runners[res.Transfer]; !ok {
				return fmt.Errorf("swarm %s: %w: %s -> %s", s.Name(), ErrUnknownHandoff, speaker, res.Transfer)
			}

			content := res.Output
			if content == "" {
				content = fmt.Sprintf("Transferred to %s, adopting the role of %s immediately.", res.Transfer, res.Transfer)
			}
			transcript = append(transcript, Message{Source: speaker, Content: content})

			runCtx.LogInfo("agent.swarm.handoff", "swarm", s.Name(), "from", speaker, "to", res.Transfer)
			speaker = res.Transfer
		} else {
			transcript = append(transcript, Message{Source: speaker, Content: res.Output})
		}

		if res.Escalate {
			reason = fmt.Sprintf("%s escalated", speaker)
			break
		}

		if s.termination != nil {
			if done, why := s.termination.Check(transcript[start-1:]); done {
				reason = why
				break
			}
		}
	}

	runCtx.SetState(s.speakerKey(), speaker)
	runCtx.LogInfo("agent.swarm.stop", "swarm", s.Name(), "reason", reason, "speaker", speaker)

	return emitFinal(runCtx, s.Name(), transcript[len(transcript)-1].Content, map[string]string{
		"stop_reason": reason,
		"speaker":     speaker,
		"turns":       strconv.Itoa(len(transcript) - start),
	})
}
