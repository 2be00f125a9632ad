package agent

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
)

// SendMessagesToolName is the name of the delegation tool given to a
// supervisor's lead.
const SendMessagesToolName = "send_messages"

// SupervisorOptions configures a SupervisorAgent.
type SupervisorOptions struct {
	// Name defaults to the lead's name.
	Name string
	// Description defaults to the lead's description.
	Description string
	// MaxParallel caps concurrently running members of one delegation. <= 0
	// runs all recipients at once.
	MaxParallel int
}

// SupervisorAgent coordinates a team through a lead agent. The lead answers
// the user and delegates work with the send_messages tool; recipients run
// in parallel, each in its own branch, and their answers are returned to the
// lead as the tool result. Team members may themselves be supervisors.
type SupervisorAgent struct {
	BaseAgent
	lead        *ModelAgent
	runner      *ModelAgent
	team        []core.Agent
	maxParallel int
}

// NewSupervisorAgent creates a supervisor over team. Names of the lead and
// all members must be unique.
func NewSupervisorAgent(lead *ModelAgent, team []core.Agent, optFns ...func(o *SupervisorOptions)) (*SupervisorAgent, error) {
	if lead == nil {
		return nil, fmt.Errorf("supervisor: %w: lead is nil", ErrInvalidAgent)
	}

	opts := SupervisorOptions{
		Name:        lead.Name(),
		Description: lead.Description(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if len(team) == 0 {
		return nil, fmt.Errorf("supervisor %s: %w", opts.Name, ErrEmptyTeam)
	}

	if err := ValidateUniqueNames(append([]core.Agent{lead}, team...)...); err != nil {
		return nil, fmt.Errorf("supervisor %s: %w", opts.Name, err)
	}

	s := &SupervisorAgent{
		BaseAgent:   NewBaseAgent(opts.Name),
		lead:        lead,
		team:        team,
		maxParallel: opts.MaxParallel,
	}
	s.SetDescription(opts.Description)
	s.bind(s)

	if err := s.SetSubAgents(team...); err != nil {
		return nil, fmt.Errorf("supervisor %s: %w", opts.Name, err)
	}

	runner, err := lead.derive([]tool.Tool{s.sendMessagesTool()}, s.roster())
	if err != nil {
		return nil, fmt.Errorf("supervisor %s: %w", opts.Name, err)
	}
	s.runner = runner

	return s, nil
}

// Lead returns the lead agent.
func (s *SupervisorAgent) Lead() *ModelAgent { return s.lead }

// Team returns the team members in declaration order.
func (s *SupervisorAgent) Team() []core.Agent {
	out := make([]core.Agent, len(s.team))
	copy(out, s.team)
	return out
}

// Run implements core.Agent. The lead runs in the supervisor's own branch.
func (s *SupervisorAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.supervisor.run", "supervisor", s.Name(), "lead", s.lead.Name(), "team", len(s.team))

	if err := s.runner.Run(runCtx); err != nil {
		return fmt.Errorf("supervisor %s: %w", s.Name(), err)
	}

	return nil
}

func (s *SupervisorAgent) roster() string {
	var sb strings.Builder

	sb.WriteString("You lead a team of agents:\n<agents>\n")
	for _, m := range s.team {
		fmt.Fprintf(&sb, "%s: %s\n", m.Name(), m.Description())
	}
	sb.WriteString("</agents>\n")
	sb.WriteString("Use the send_messages tool to delegate work. Messages to several agents are processed in parallel; ")
	sb.WriteString("their answers are returned to you. Address agents by their exact name. ")
	sb.WriteString("Team members do not see the user conversation, so include all context a task needs. ")
	sb.WriteString("Answer the user yourself once you have what you need.")

	return sb.String()
}

func (s *SupervisorAgent) member(name string) core.Agent {
	for _, m := range s.team {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

func (s *SupervisorAgent) sendMessagesTool() tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"messages": map[string]any{
				"type":        "array",
				"description": "Messages to send, one per recipient.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"recipient": map[string]any{"type": "string", "description": "Exact name of the team member."},
						"content":   map[string]any{"type": "string", "description": "The task or question for the recipient."},
					},
					"required": []string{"recipient", "content"},
				},
			},
		},
		"required": []string{"messages"},
	}

	return tool.NewFunctionTool(SendMessagesToolName, "Send messages to team members in parallel and collect their answers.", params, s.sendMessages)
}

type delegation struct {
	recipient string
	content   string
}

func parseDelegations(args map[string]any) []delegation {
	raw, _ := args["messages"].([]any)

	out := make([]delegation, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		recipient, _ := m["recipient"].(string)
		content, _ := m["content"].(string)
		out = append(out, delegation{recipient: strings.TrimSpace(recipient), content: content})
	}

	return out
}

// sendMessages runs every addressed member and returns "<name>: <answer>"
// lines in message order.
func (s *SupervisorAgent) sendMessages(tc *core.ToolContext, args map[string]any) (any, error) {
	msgs := parseDelegations(args)
	if len(msgs) == 0 {
		return nil, tool.NewToolError(SendMessagesToolName, "no messages given", tool.CodeValidation)
	}

	runCtx := tc.InternalRunContext()
	answers := make([]string, len(msgs))

	g, gctx := errgroup.WithContext(tc.Context())
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}

	var mu sync.Mutex

	for i, msg := range msgs {
		m := s.member(msg.recipient)
		if m == nil {
			answers[i] = fmt.Sprintf("%s: unknown recipient, choose one of the listed agents", msg.recipient)
			continue
		}

		g.Go(func() error {
			res, err := runChild(runCtx, m, childRun{input: msg.content, ctx: gctx})
			if err != nil {
				return fmt.Errorf("agent %s: %w", m.Name(), err)
			}

			mu.Lock()
			answers[i] = fmt.Sprintf("%s: %s", m.Name(), res.Output)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return strings.Join(answers, "\n"), nil
}
