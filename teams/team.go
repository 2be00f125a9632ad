package teams

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/hupe1980/agentcrew"
	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/classifier"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/flow"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
	"github.com/hupe1980/agentcrew/tool/builtin"
)

const (
	// DefaultUserID is the user id of interactive runs.
	DefaultUserID = "user123"

	// noAgentMessage is the answer of routed teams when no agent fits.
	noAgentMessage = "对不起，我不太懂你的意思"

	// teamToolRecursions bounds the model calls of tool-using team members.
	teamToolRecursions = 5
)

var (
	// ErrUnknownTeam is returned by Build for unregistered names.
	ErrUnknownTeam = errors.New("unknown team")
	// ErrMissingDependency is returned when a builder lacks a dependency.
	ErrMissingDependency = errors.New("missing team dependency")
)

// Deps are the dependencies of a team builder.
type Deps struct {
	// Model backs every agent and the classifier.
	Model model.Model
	// Streaming enables token streaming for agents that support it.
	Streaming bool
	// Callbacks are attached to every model agent.
	Callbacks flow.Callbacks
	// Searcher backs the web_search tool.
	Searcher builtin.Searcher
	// Input answers user proxy turns.
	Input agent.InputFunc
	// Config is the orchestration policy. Teams set their own routing
	// fallback on top of it.
	Config *agentcrew.Config
	// MaxConcurrentInvocations caps concurrent agent runs.
	MaxConcurrentInvocations int64
	// OnEvent receives every event of an agent run.
	OnEvent func(core.Event)
	Logger  logging.Logger
	// UserID and SessionID identify the conversation. A random session id
	// is used when empty.
	UserID    string
	SessionID string
}

// Team is an assembled orchestrator ready to take requests.
type Team struct {
	Name         string
	Description  string
	Orchestrator *agentcrew.Orchestrator
	// Prepare runs before every request.
	Prepare   func(input string)
	UserID    string
	SessionID string
}

// Handle routes one request through the team.
func (t *Team) Handle(ctx context.Context, input string) (*agentcrew.Response, error) {
	if t.Prepare != nil {
		t.Prepare(input)
	}

	return t.Orchestrator.RouteRequest(ctx, input, t.UserID, t.SessionID)
}

// Builder assembles a team.
type Builder func(d Deps) (*Team, error)

// Entry describes a buildable team.
type Entry struct {
	Name        string
	Description string
	Build       Builder
}

// Catalog lists the bundled teams sorted by name.
func Catalog() []Entry {
	entries := []Entry{
		{Name: "supervisor", Description: "Health assistant and a support team lead over hotel, complaint and social media agents", Build: Supervisor},
		{Name: "translation-chain", Description: "Translate, review and edit English to Chinese in a chain", Build: TranslationChain},
		{Name: "weather", Description: "Weather reports with a weather tool plus knowledge and health agents", Build: Weather},
		{Name: "stock-research", Description: "Planner supervising financial, news and writer agents with mock tools", Build: StockResearch},
		{Name: "deep-research", Description: "Planner supervising web search analysts", Build: DeepResearch},
		{Name: "roundrobin-translation", Description: "Translation agents taking turns until APPROVE or three turns", Build: RoundRobinTranslation},
		{Name: "human-in-loop", Description: "An assistant and a human taking turns until the human says APPROVE", Build: HumanInLoop},
		{Name: "swarm-research", Description: "Stock research swarm handing off until TERMINATE", Build: SwarmResearch},
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries
}

// Names returns the names of the bundled teams.
func Names() []string {
	entries := Catalog()

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}

	return names
}

// Build assembles the named team.
func Build(name string, d Deps) (*Team, error) {
	for _, e := range Catalog() {
		if e.Name == name {
			return e.Build(d)
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTeam, name)
}

func (d Deps) check(team string) error {
	if d.Model == nil {
		return fmt.Errorf("team %s: %w: model", team, ErrMissingDependency)
	}
	return nil
}

func (d Deps) config() agentcrew.Config {
	if d.Config != nil {
		return *d.Config
	}
	return agentcrew.DefaultConfig()
}

// routed creates an orchestrator classifying with the model.
func (d Deps) routed(name, description string, useDefault bool) *Team {
	cfg := d.config()
	cfg.UseDefaultAgentIfNoneIdentified = useDefault
	cfg.NoSelectedAgentMessage = noAgentMessage

	cls := classifier.NewModelClassifier(d.Model, func(o *classifier.ModelClassifierOptions) {
		o.Logger = d.Logger
	})

	return d.team(name, description, cls, cfg)
}

// static creates an orchestrator that always selects the agent named name.
func (d Deps) static(name, description string) *Team {
	return d.team(name, description, classifier.NewStatic(name), d.config())
}

func (d Deps) team(name, description string, cls classifier.Classifier, cfg agentcrew.Config) *Team {
	crew := agentcrew.New(cls, func(o *agentcrew.Options) {
		o.Config = cfg
		if d.MaxConcurrentInvocations > 0 {
			o.MaxConcurrentInvocations = d.MaxConcurrentInvocations
		}
		o.Logger = d.Logger
		o.OnEvent = d.OnEvent
	})

	userID := d.UserID
	if userID == "" {
		userID = DefaultUserID
	}

	sessionID := d.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return &Team{
		Name:         name,
		Description:  description,
		Orchestrator: crew,
		UserID:       userID,
		SessionID:    sessionID,
	}
}

// member describes one model agent of a team.
type member struct {
	name        string
	description string
	instruction string
	streaming   bool
	tools       []tool.Tool
}

func (d Deps) agent(m member) (*agent.ModelAgent, error) {
	return agent.NewModelAgent(m.name, d.Model, func(o *agent.ModelAgentOptions) {
		o.Description = m.description
		if m.instruction != "" {
			o.Instruction = agent.NewInstructionFromText(m.instruction)
		} else if m.description != "" {
			o.Instruction = agent.NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant. %s", m.name, m.description))
		}
		o.EnableStreaming = m.streaming && d.Streaming
		o.Callbacks = d.Callbacks
		o.Tools = m.tools
		if len(m.tools) > 0 {
			o.MaxToolRecursions = teamToolRecursions
		}
	})
}

func (d Deps) agents(members ...member) ([]*agent.ModelAgent, error) {
	out := make([]*agent.ModelAgent, 0, len(members))

	for _, m := range members {
		a, err := d.agent(m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, nil
}

func asAgents(models ...*agent.ModelAgent) []core.Agent {
	out := make([]core.Agent, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	return out
}
