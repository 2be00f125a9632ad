package agent

import (
	"fmt"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/flow"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

// DefaultMaxToolRecursions bounds the model calls of one ModelAgent turn.
const DefaultMaxToolRecursions = 20

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description       string
	Instruction       Instruction
	EnableStreaming   bool
	Tools             []tool.Tool
	MaxToolRecursions int
	Callbacks         flow.Callbacks
	// OutputKey stores the final answer in session state under this key.
	OutputKey string
}

// ModelAgent is an agent descriptor backed by a language model: a name, a
// description used for routing, an instruction template, a bounded tool set,
// a streaming flag and callbacks.
//
// ModelAgent embeds BaseAgent for identity and hierarchy management.
type ModelAgent struct {
	BaseAgent
	llm               model.Model
	instruction       Instruction
	tools             *tool.Registry
	enableStreaming   bool
	maxToolRecursions int
	callbacks         flow.Callbacks
	outputKey         string
}

// NewModelAgent creates a model-backed agent.
//
// Defaults:
//   - Instruction "You are <name>, a helpful AI assistant."
//   - Streaming disabled
//   - At most 20 model calls per turn
//
// Duplicate tool names are rejected with tool.ErrDuplicateTool.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) (*ModelAgent, error) {
	opts := ModelAgentOptions{
		Instruction:       NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxToolRecursions: DefaultMaxToolRecursions,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}

	a := &ModelAgent{
		BaseAgent:         NewBaseAgent(name),
		llm:               llm,
		instruction:       opts.Instruction,
		tools:             registry,
		enableStreaming:   opts.EnableStreaming,
		maxToolRecursions: opts.MaxToolRecursions,
		callbacks:         opts.Callbacks,
		outputKey:         opts.OutputKey,
	}
	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}
	a.bind(a)

	return a, nil
}

// RegisterTool adds a tool to the agent's capability set.
func (a *ModelAgent) RegisterTool(t tool.Tool) error {
	return a.tools.Register(t)
}

// RegisterTools adds multiple tools and stops at the first failure.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) error {
	for _, t := range tools {
		if err := a.RegisterTool(t); err != nil {
			return err
		}
	}
	return nil
}

// HasTool checks if a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	_, ok := a.tools.Get(name)
	return ok
}

// ListTools returns the names of all registered tools in registration order.
func (a *ModelAgent) ListTools() []string {
	tools := a.tools.Tools()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name())
	}
	return names
}

// SetPromptTemplate replaces the instruction text. Variables bound earlier
// are kept.
func (a *ModelAgent) SetPromptTemplate(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.instruction.template == nil {
		a.instruction = NewInstructionFromText(text)
		return
	}
	a.instruction.template.SetText(text)
}

// SetPromptVariables binds placeholder values. Later calls override earlier
// values; binding is applied when the instruction is resolved.
func (a *ModelAgent) SetPromptVariables(vars map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.instruction.template == nil {
		return
	}
	a.instruction.template.SetVariables(vars)
}

// PromptVariables returns a copy of the bound placeholder values.
func (a *ModelAgent) PromptVariables() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.instruction.template == nil {
		return map[string]string{}
	}
	return a.instruction.template.Variables()
}

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns the agent's tool registry.
func (a *ModelAgent) GetTools() *tool.Registry { return a.tools }

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// MaxToolRecursions returns the model call budget of one turn.
func (a *ModelAgent) MaxToolRecursions() int { return a.maxToolRecursions }

// GetCallbacks returns the agent's hooks.
func (a *ModelAgent) GetCallbacks() flow.Callbacks { return a.callbacks }

// OutputKey returns the session state key the final answer is stored under.
func (a *ModelAgent) OutputKey() string { return a.outputKey }

// ResolveInstructions produces the system prompt for a run.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	a.mu.Lock()
	instruction := a.instruction
	a.mu.Unlock()

	return instruction.Resolve(runCtx)
}

// derive returns a copy of the agent with extra tools and an instruction
// suffix. The copy shares model, callbacks and template but has its own
// registry and no hierarchy links.
func (a *ModelAgent) derive(extra []tool.Tool, suffix string) (*ModelAgent, error) {
	tools := append(a.tools.Tools(), extra...)

	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.Name(), err)
	}

	base := a
	d := &ModelAgent{
		BaseAgent:         NewBaseAgent(a.Name()),
		llm:               a.llm,
		tools:             registry,
		enableStreaming:   a.enableStreaming,
		maxToolRecursions: a.maxToolRecursions,
		callbacks:         a.callbacks,
		outputKey:         a.outputKey,
		instruction: NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
			text, err := base.ResolveInstructions(rc)
			if err != nil || suffix == "" {
				return text, err
			}
			return text + "\n\n" + suffix, nil
		}),
	}
	d.SetDescription(a.Description())
	d.bind(d)

	return d, nil
}

// Run executes one turn with the flow matching the agent's capabilities and
// forwards the flow's events.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	fl := flow.NewSelector().SelectFlow(a)

	runCtx.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl), "run", runCtx.RunID)

	events, errCh := fl.Execute(runCtx)

	for ev := range events {
		if a.outputKey != "" && ev.TurnComplete != nil && *ev.TurnComplete && ev.Text() != "" {
			runCtx.SetState(a.outputKey, ev.Text())
		}

		if err := runCtx.EmitEvent(ev); err != nil {
			runCtx.LogWarn("agent.run.emit_failed", "agent", a.Name(), "error", err.Error())
			go func() {
				for range events {
				}
			}()
			return err
		}
	}

	if err := <-errCh; err != nil {
		runCtx.LogError("agent.run.failed", "agent", a.Name(), "error", err.Error())
		return err
	}

	return nil
}
