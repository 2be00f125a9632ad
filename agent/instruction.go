package agent

import (
	"fmt"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/prompt"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either a prompt template with deferred variables or a
// dynamic provider.
//
// A template is rendered with its bound variables first; session state
// values fill placeholders that were not bound explicitly. Placeholders that
// remain unresolved stay verbatim.
type Instruction struct {
	template *prompt.Template
	provider Provider
}

// NewInstructionFromText creates an Instruction backed by a template.
func NewInstructionFromText(text string) Instruction {
	return Instruction{template: prompt.NewTemplate(text)}
}

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Template returns the backing template or nil for provider instructions.
func (i Instruction) Template() *prompt.Template { return i.template }

// Resolve returns the instruction text for a run.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}
	if i.template == nil {
		return "", nil
	}
	return i.template.Render(stateVariables(rc)), nil
}

// stateVariables renders session state values as template variables.
func stateVariables(rc *core.RunContext) map[string]string {
	if rc == nil {
		return nil
	}

	state := rc.State()
	if len(state) == 0 {
		return nil
	}

	vars := make(map[string]string, len(state))
	for k, v := range state {
		switch val := v.(type) {
		case string:
			vars[k] = val
		case fmt.Stringer:
			vars[k] = val.String()
		case nil:
		default:
			vars[k] = fmt.Sprint(val)
		}
	}

	return vars
}
