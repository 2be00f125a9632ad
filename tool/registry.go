package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
	"github.com/hupe1980/agentcrew/model"
)

// Registry is a name keyed set of tools. Names are unique: registering a
// second tool under an existing name fails. Tools() keeps registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns a registry holding tools, or the first registration error.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. It fails with ErrDuplicateTool if the name is taken.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tools == nil {
		r.tools = map[string]Tool{}
	}

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("%w: tool %q already registered", ErrDuplicateTool, t.Name())
	}

	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())

	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Names returns all tool names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Tools returns the tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}

	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Definitions converts the tools into model tool definitions in registration order.
func (r *Registry) Definitions() []model.ToolDefinition {
	tools := r.Tools()
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.NewToolDefinition(t.Name(), t.Description(), t.Parameters()))
	}
	return defs
}

// Execute decodes argsJSON and calls the named tool.
func (r *Registry) Execute(toolCtx *core.ToolContext, name, argsJSON string) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, NewToolError(name, fmt.Sprintf("tool %q is not available", name), CodeNotFound)
	}

	args, err := util.ParseArgs(argsJSON)
	if err != nil {
		return nil, NewToolError(name, err.Error(), CodeValidation)
	}

	return t.Call(toolCtx, args)
}
