package core

// Agent defines the interface every agent and team composition implements.
//
// Agents receive their input through a RunContext, emit events describing
// their progress and final answer, and return when the turn is complete. A
// non-nil error aborts the enclosing invocation.
//
// Implementations must:
//   - Respect context cancellation
//   - Emit events through the provided RunContext
//   - Keep names unique within a composition (see agent.ValidateUniqueNames)
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "model", "chain", "supervisor").
type AgentInfo struct{ Name, Type string }
