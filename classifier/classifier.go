package classifier

import (
	"context"
	"errors"
	"strings"

	"github.com/hupe1980/agentcrew/core"
)

// ErrNoDecision is returned when a classifier response carries neither an
// analyzePrompt call nor a parsable decision.
var ErrNoDecision = errors.New("classifier returned no decision")

// Profile describes a routable agent.
type Profile struct {
	Name        string
	Description string
}

// ID is the normalized agent identifier: the lower-cased name with spaces
// replaced by dashes.
func (p Profile) ID() string { return normalize(p.Name) }

// Result is a routing decision. SelectedAgent is nil when no agent fits.
type Result struct {
	SelectedAgent *Profile
	Confidence    float64
	// Raw is the unparsed model output the decision was read from.
	Raw string
}

// Classifier picks the agent for a request.
type Classifier interface {
	Classify(ctx context.Context, input string, agents []Profile, history []core.Event) (*Result, error)
}

// Func adapts a function into a Classifier.
type Func func(ctx context.Context, input string, agents []Profile, history []core.Event) (*Result, error)

// Classify implements Classifier.
func (f Func) Classify(ctx context.Context, input string, agents []Profile, history []core.Event) (*Result, error) {
	return f(ctx, input, agents, history)
}

// Static always selects the agent with the given name. An unknown name
// yields an empty selection.
type Static struct {
	name string
}

// NewStatic creates a classifier that routes every request to name.
func NewStatic(name string) *Static { return &Static{name: name} }

// Classify implements Classifier.
func (s *Static) Classify(_ context.Context, _ string, agents []Profile, _ []core.Event) (*Result, error) {
	p := Find(agents, s.name)
	if p == nil {
		return &Result{}, nil
	}

	return &Result{SelectedAgent: p, Confidence: 1, Raw: s.name}, nil
}

// Find returns the profile matching name by exact name or normalized id.
func Find(agents []Profile, name string) *Profile {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	id := normalize(name)
	for i := range agents {
		if agents[i].Name == name || agents[i].ID() == id {
			p := agents[i]
			return &p
		}
	}

	return nil
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
