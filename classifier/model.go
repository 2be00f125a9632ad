package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/prompt"
	"github.com/hupe1980/agentcrew/tool"
)

// AnalyzePromptToolName is the tool the model reports its decision with.
const AnalyzePromptToolName = "analyzePrompt"

// DefaultInstruction is the routing prompt. {{agent_descriptions}} and
// {{history}} are filled per request.
const DefaultInstruction = `You are AgentMatcher, an intelligent assistant designed to analyze user queries and match them with the most suitable agent.

Analyze the user's input and categorize it into one of the following agent types:
<agents>
{{agent_descriptions}}
</agents>

If you are unable to select an agent, put "unknown" as the selected agent.

Guidelines for classification:
- Agent Type: choose the most appropriate agent based on the nature of the query. For follow-up responses use the same agent as the previous interaction.
- Confidence: indicate how confident you are in the classification on a scale from 0 to 1.
- Is Followup: short answers such as "yes", "ok" or "I want to know more" continue the previous topic.

Here is the conversation history that you need to take into account before answering:
<history>
{{history}}
</history>

Call the analyzePrompt tool with your decision. Do not answer the user.`

var analyzePromptParams = []tool.Param{
	{Name: "userinput", Type: "string", Description: "The original user input", Required: true},
	{Name: "selected_agent", Type: "string", Description: "The name of the selected agent", Required: true},
	{Name: "confidence", Type: "number", Description: "Confidence level between 0 and 1", Required: true},
}

// ModelClassifierOptions configures a ModelClassifier.
type ModelClassifierOptions struct {
	// Instruction is the routing prompt template.
	Instruction string
	// Variables are bound into Instruction before the per-request values.
	Variables map[string]string
	Logger    logging.Logger
}

// ModelClassifier routes with a language model forced to call analyzePrompt.
type ModelClassifier struct {
	llm      model.Model
	template *prompt.Template
	logger   logging.Logger
	toolDef  model.ToolDefinition
}

// NewModelClassifier creates a classifier backed by llm.
func NewModelClassifier(llm model.Model, optFns ...func(o *ModelClassifierOptions)) *ModelClassifier {
	opts := ModelClassifierOptions{Instruction: DefaultInstruction}
	for _, fn := range optFns {
		fn(&opts)
	}

	t := prompt.NewTemplate(opts.Instruction)
	if len(opts.Variables) > 0 {
		t.SetVariables(opts.Variables)
	}

	return &ModelClassifier{
		llm:      llm,
		template: t,
		logger:   logging.OrNoOp(opts.Logger),
		toolDef: model.NewToolDefinition(AnalyzePromptToolName,
			"Analyze the user input and provide structured output", tool.Schema(analyzePromptParams...)),
	}
}

// SetInstruction replaces the routing prompt template.
func (c *ModelClassifier) SetInstruction(text string) { c.template.SetText(text) }

// Classify implements Classifier.
func (c *ModelClassifier) Classify(ctx context.Context, input string, agents []Profile, history []core.Event) (*Result, error) {
	if c.llm == nil {
		return nil, fmt.Errorf("classifier: no model configured")
	}

	instructions := c.template.Render(map[string]string{
		"agent_descriptions": describeAgents(agents),
		"history":            formatHistory(history),
	})

	req := model.Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, input)},
		Tools:        []model.ToolDefinition{c.toolDef},
		ToolChoice:   AnalyzePromptToolName,
	}

	resp, err := model.Collect(ctx, c.llm, req, nil)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	raw, d, err := decode(resp)
	if err != nil {
		c.logger.Warn("classifier.decode_failed", "error", err.Error(), "raw", raw)
		return nil, err
	}

	res := &Result{Raw: raw, Confidence: d.confidence()}
	if p := Find(agents, d.SelectedAgent); p != nil {
		res.SelectedAgent = p
	}

	c.logger.Debug("classifier.decision", "selected", d.SelectedAgent, "confidence", res.Confidence, "matched", res.SelectedAgent != nil)

	return res, nil
}

type decision struct {
	UserInput     string          `json:"userinput"`
	SelectedAgent string          `json:"selected_agent"`
	Confidence    json.RawMessage `json:"confidence"`
}

// confidence accepts a number or a numeric string.
func (d decision) confidence() float64 {
	s := strings.Trim(strings.TrimSpace(string(d.Confidence)), `"`)
	if s == "" {
		return 0
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return f
}

// decode reads the decision from an analyzePrompt call or, failing that, from
// a JSON object in the response text.
func decode(resp model.Response) (string, decision, error) {
	var d decision

	for _, fc := range resp.FunctionCalls() {
		if fc.Name != AnalyzePromptToolName {
			continue
		}
		if err := json.Unmarshal([]byte(fc.Arguments), &d); err != nil {
			return fc.Arguments, d, fmt.Errorf("%w: invalid %s arguments: %v", ErrNoDecision, AnalyzePromptToolName, err)
		}
		return fc.Arguments, d, nil
	}

	text := resp.Content.Text()

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text, d, ErrNoDecision
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return text, d, fmt.Errorf("%w: %v", ErrNoDecision, err)
	}

	return text, d, nil
}

func describeAgents(agents []Profile) string {
	lines := make([]string, 0, len(agents))
	for _, a := range agents {
		lines = append(lines, fmt.Sprintf("%s:%s", a.ID(), a.Description))
	}
	return strings.Join(lines, "\n\n")
}

func formatHistory(history []core.Event) string {
	lines := make([]string, 0, len(history))
	for _, ev := range history {
		if ev.Content == nil {
			continue
		}
		text := ev.Text()
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", ev.Content.Role, text))
	}
	return strings.Join(lines, "\n")
}
