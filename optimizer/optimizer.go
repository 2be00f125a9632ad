// Package optimizer improves system prompts from conversation feedback.
//
// A PromptOptimizer receives trajectories (a conversation plus feedback on
// it) and the current prompt and asks a model for a better prompt. Three
// strategies are available:
//
//	metaprompt     one reflection pass that reasons about the feedback and
//	               rewrites the prompt
//	gradient       a critique pass naming what must change, then a pass that
//	               applies the critique
//	prompt_memory  one pass that folds the lessons of the feedback into the
//	               prompt
//
// Every strategy returns the text the model placed inside
// <improved_prompt> tags. Without tags the prompt is returned unchanged.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/prompt"
)

// Kind selects the optimization strategy.
type Kind string

// Supported strategies.
const (
	KindMetaprompt   Kind = "metaprompt"
	KindGradient     Kind = "gradient"
	KindPromptMemory Kind = "prompt_memory"
)

// ErrUnknownKind is returned for an unsupported strategy.
var ErrUnknownKind = errors.New("unknown optimizer kind")

// ParseKind validates a strategy name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMetaprompt, KindGradient, KindPromptMemory:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Trajectory is a conversation with feedback on it.
type Trajectory struct {
	Messages []core.Content
	Feedback map[string]string
}

// Options configures a PromptOptimizer.
type Options struct {
	Kind   Kind
	Logger logging.Logger
}

// PromptOptimizer rewrites prompts with a model.
type PromptOptimizer struct {
	llm    model.Model
	kind   Kind
	logger logging.Logger
}

// New creates an optimizer. The default kind is metaprompt.
func New(llm model.Model, optFns ...func(o *Options)) (*PromptOptimizer, error) {
	opts := Options{Kind: KindMetaprompt}
	for _, fn := range optFns {
		fn(&opts)
	}

	kind, err := ParseKind(string(opts.Kind))
	if err != nil {
		return nil, err
	}

	return &PromptOptimizer{llm: llm, kind: kind, logger: logging.OrNoOp(opts.Logger)}, nil
}

// Kind returns the strategy in use.
func (p *PromptOptimizer) Kind() Kind { return p.kind }

// Optimize returns an improved version of current. Without trajectories the
// prompt is returned unchanged and the model is not called.
func (p *PromptOptimizer) Optimize(ctx context.Context, trajectories []Trajectory, current string) (string, error) {
	if len(trajectories) == 0 {
		return current, nil
	}

	vars := map[string]string{
		"prompt":       current,
		"trajectories": formatTrajectories(trajectories),
	}

	var (
		out string
		err error
	)

	switch p.kind {
	case KindGradient:
		out, err = p.gradient(ctx, vars)
	case KindPromptMemory:
		out, err = p.ask(ctx, promptMemoryInstruction, vars)
	default:
		out, err = p.ask(ctx, metapromptInstruction, vars)
	}

	if err != nil {
		return "", fmt.Errorf("optimizer %s: %w", p.kind, err)
	}

	improved, ok := ExtractImprovedPrompt(out)
	if !ok {
		p.logger.Warn("optimizer.no_improved_prompt", "kind", string(p.kind))
		return current, nil
	}

	p.logger.Debug("optimizer.improved", "kind", string(p.kind), "length", len(improved))

	return improved, nil
}

func (p *PromptOptimizer) gradient(ctx context.Context, vars map[string]string) (string, error) {
	critique, err := p.ask(ctx, gradientCritiqueInstruction, vars)
	if err != nil {
		return "", err
	}

	vars["critique"] = critique

	return p.ask(ctx, gradientApplyInstruction, vars)
}

func (p *PromptOptimizer) ask(ctx context.Context, instruction string, vars map[string]string) (string, error) {
	req := model.Request{
		Instructions: "You are a prompt engineer improving the system prompts of AI assistants.",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, prompt.Bind(instruction, vars))},
	}

	resp, err := model.Collect(ctx, p.llm, req, nil)
	if err != nil {
		return "", err
	}

	return resp.Content.Text(), nil
}

// ExtractImprovedPrompt returns the trimmed text between the last
// <improved_prompt> tag pair.
func ExtractImprovedPrompt(text string) (string, bool) {
	const open, closing = "<improved_prompt>", "</improved_prompt>"

	end := strings.LastIndex(text, closing)
	if end < 0 {
		return "", false
	}

	start := strings.LastIndex(text[:end], open)
	if start < 0 {
		return "", false
	}

	improved := strings.TrimSpace(text[start+len(open) : end])
	if improved == "" {
		return "", false
	}

	return improved, true
}

func formatTrajectories(trajectories []Trajectory) string {
	var sb strings.Builder

	for i, t := range trajectories {
		fmt.Fprintf(&sb, "<trajectory %d>\n", i+1)
		for _, m := range t.Messages {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Text())
		}

		if len(t.Feedback) > 0 {
			keys := make([]string, 0, len(t.Feedback))
			for k := range t.Feedback {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			sb.WriteString("<feedback>\n")
			for _, k := range keys {
				fmt.Fprintf(&sb, "%s: %s\n", k, t.Feedback[k])
			}
			sb.WriteString("</feedback>\n")
		}

		fmt.Fprintf(&sb, "</trajectory %d>\n", i+1)
	}

	return strings.TrimRight(sb.String(), "\n")
}

const metapromptInstruction = `You are helping an AI assistant learn by optimizing its prompt.

## Current prompt
<current_prompt>
{{prompt}}
</current_prompt>

## Conversations with feedback
<trajectories>
{{trajectories}}
</trajectories>

Reflect on how the assistant performed and what the feedback asks for. Keep what works, fix what the feedback criticizes and keep the prompt concise. Think step by step, then return the complete improved prompt between <improved_prompt> and </improved_prompt> tags.`

const gradientCritiqueInstruction = `Review the prompt and the conversations below. Name the concrete problems the feedback points to and, for each, the change to the prompt that would fix it. Do not rewrite the prompt yet.

<current_prompt>
{{prompt}}
</current_prompt>

<trajectories>
{{trajectories}}
</trajectories>`

const gradientApplyInstruction = `Apply the recommended changes to the prompt. Change only what the critique asks for.

<current_prompt>
{{prompt}}
</current_prompt>

<critique>
{{critique}}
</critique>

Return the complete improved prompt between <improved_prompt> and </improved_prompt> tags.`

const promptMemoryInstruction = `The conversations below carry feedback from users. Extract the lessons they teach and fold them into the prompt as lasting instructions, keeping everything else intact.

<current_prompt>
{{prompt}}
</current_prompt>

<trajectories>
{{trajectories}}
</trajectories>

Return the complete updated prompt between <improved_prompt> and </improved_prompt> tags.`
