package agent

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

var (
	// ErrDuplicateAgent is returned when two agents of one composition share a name.
	ErrDuplicateAgent = errors.New("duplicate agent name")
	// ErrInvalidAgent is returned for nil agents or agents without a name.
	ErrInvalidAgent = errors.New("invalid agent")
	// ErrEmptyTeam is returned when a composition is built without members.
	ErrEmptyTeam = errors.New("composition has no members")
	// ErrNoOutput is returned when a nested agent finishes without a final answer.
	ErrNoOutput = errors.New("agent produced no output")
)

// ValidateUniqueNames checks that every agent is non-nil, named, and that no
// two agents share a name. Names are compared exactly.
func ValidateUniqueNames(agents ...core.Agent) error {
	seen := make(map[string]struct{}, len(agents))

	for i, a := range agents {
		if a == nil {
			return fmt.Errorf("%w: agent at position %d is nil", ErrInvalidAgent, i)
		}

		name := a.Name()
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: agent at position %d has no name", ErrInvalidAgent, i)
		}

		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateAgent, name)
		}
		seen[name] = struct{}{}
	}

	return nil
}

// BaseAgent bundles identity and hierarchy management. Embed it in concrete
// agent implementations and supply a Run method to satisfy core.Agent. All
// exported methods are goroutine-safe.
type BaseAgent struct {
	name        string
	description string
	mu          sync.Mutex
	owner       core.Agent   // concrete agent embedding this base
	parent      core.Agent   // parent agent in hierarchical structures
	subAgents   []core.Agent // child agents managed by this agent
}

// NewBaseAgent constructs a BaseAgent with a generated description
// (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns the capability summary used for routing.
func (b *BaseAgent) Description() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.description
}

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}

// bind records the concrete agent so hierarchy lookups return it instead of
// the embedded base.
func (b *BaseAgent) bind(owner core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owner = owner
}

func (b *BaseAgent) self() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.owner != nil {
		return b.owner
	}
	return &agentWrapper{b}
}

// SetSubAgents atomically replaces the child agent set. Names must be unique.
// Previous children are detached; each new child gets this agent as parent.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	if err := ValidateUniqueNames(children...); err != nil {
		return err
	}

	self := b.self()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, child := range b.subAgents {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(nil)
		}
	}
	b.subAgents = nil

	for _, child := range children {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(self)
		}
		b.subAgents = append(b.subAgents, child)
	}

	return nil
}

func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = p
}

// Parent returns the current parent agent or nil if this agent is a root.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

// SubAgents returns a shallow copy of the current child agents.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]core.Agent, len(b.subAgents))
	copy(result, b.subAgents)
	return result
}

// FindAgent performs a depth-first search over the subtree rooted at this
// agent (including itself) and returns the first agent with a matching name,
// or nil.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return b.self()
	}

	for _, child := range b.SubAgents() {
		if child.Name() == name {
			return child
		}
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}
	return nil
}

// agentWrapper wraps BaseAgent to satisfy core.Agent for hierarchy references.
type agentWrapper struct{ *BaseAgent }

// Run always fails; a BaseAgent has no behavior of its own.
func (w *agentWrapper) Run(_ *core.RunContext) error {
	return fmt.Errorf("cannot execute BaseAgent directly - embed it in a concrete agent with Run implementation")
}
