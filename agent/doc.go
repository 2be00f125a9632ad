// Package agent contains agent descriptors and the team compositions built
// from them. The package covers three concerns:
//
//  1. Identity and hierarchy plumbing (BaseAgent, ValidateUniqueNames)
//  2. The model-backed agent descriptor (ModelAgent) and the human
//     participant (UserProxyAgent)
//  3. Compositions: ChainAgent, SupervisorAgent, RoundRobinTeam and Swarm
//
// Execution Model:
//   - An agent's Run receives a *core.RunContext and emits events through it
//   - A composition runs each nested agent in its own branch
//     "<composition>.<agent>" and forwards the nested events unchanged
//   - Every composition emits its answer as a final event on its own branch,
//     so callers read one answer per request regardless of nesting depth
//
// Names must be unique within a composition; constructors reject duplicates
// with ErrDuplicateAgent.
package agent
