package teams

import (
	"fmt"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
	"github.com/hupe1980/agentcrew/tool/builtin"
)

const userProxyName = "user_proxy"

// RoundRobinTranslation lets translator, reviewer and chief translator take
// turns over one transcript. A user proxy joins when Deps.Input is set. The
// team stops after three turns or once a message mentions APPROVE.
func RoundRobinTranslation(d Deps) (*Team, error) {
	const name = "translation_team"

	if err := d.check("roundrobin-translation"); err != nil {
		return nil, err
	}

	members, err := d.agents(
		member{name: "translation_agent", description: "Translates the source text", instruction: translatorPrompt},
		member{name: "review_agent", description: "Reviews translations", instruction: reviewerPrompt},
		member{name: "chief_translation_agent", description: "Edits the final translation", instruction: chatChiefTranslatorPrompt},
	)
	if err != nil {
		return nil, err
	}

	vars := map[string]string{"source_lang": "English", "target_lang": "Chinese", "country": "China"}
	for _, m := range members {
		m.SetPromptVariables(vars)
	}

	participants := asAgents(members...)
	if d.Input != nil {
		participants = append(participants, agent.NewUserProxyAgent(userProxyName, d.Input))
	}

	rr, err := agent.NewRoundRobinTeam(name, participants,
		agent.WithMaxTurns(3),
		agent.WithTermination(agent.TextMention("APPROVE")),
		agent.WithDescription("Translation agents taking turns on one transcript"),
	)
	if err != nil {
		return nil, err
	}

	t := d.static(name, "Round-robin translation team")
	if err := t.Orchestrator.AddAgent(rr); err != nil {
		return nil, err
	}

	return t, nil
}

// HumanInLoop pairs an assistant with a human who approves the result.
func HumanInLoop(d Deps) (*Team, error) {
	const name = "poem_team"

	if err := d.check("human-in-loop"); err != nil {
		return nil, err
	}
	if d.Input == nil {
		return nil, fmt.Errorf("team human-in-loop: %w: input", ErrMissingDependency)
	}

	assistant, err := d.agent(member{name: "assistant", description: "A helpful assistant"})
	if err != nil {
		return nil, err
	}

	rr, err := agent.NewRoundRobinTeam(name, []core.Agent{assistant, agent.NewUserProxyAgent(userProxyName, d.Input)},
		agent.WithTermination(agent.TextMention("APPROVE")),
	)
	if err != nil {
		return nil, err
	}

	t := d.static(name, "Assistant with human approval")
	if err := t.Orchestrator.AddAgent(rr); err != nil {
		return nil, err
	}

	return t, nil
}

// SwarmResearch builds the stock research swarm. The planner hands off to
// the specialists, who hand back to the planner, until TERMINATE.
func SwarmResearch(d Deps) (*Team, error) {
	const name = "research_team"

	if err := d.check("swarm-research"); err != nil {
		return nil, err
	}

	members, err := d.agents(
		member{name: "planner", description: "a research planning coordinator.", instruction: stockPlannerPrompt},
		member{name: "financial_analyst", description: "For stock data analysis", instruction: financialAnalystPrompt, tools: []tool.Tool{builtin.NewStockDataTool()}},
		member{name: "news_analyst", description: "a news analyst.", instruction: newsAnalystPrompt, tools: []tool.Tool{builtin.NewNewsTool()}},
		member{name: "writer", description: "financial report writer.", instruction: writerPrompt},
	)
	if err != nil {
		return nil, err
	}

	swarm, err := agent.NewSwarm(name, []agent.SwarmMember{
		{Agent: members[0], Handoffs: []string{"financial_analyst", "news_analyst", "writer"}},
		{Agent: members[1], Handoffs: []string{"planner"}},
		{Agent: members[2], Handoffs: []string{"planner"}},
		{Agent: members[3], Handoffs: []string{"planner"}},
	}, func(o *agent.SwarmOptions) {
		o.Description = "Stock research swarm"
		o.Termination = agent.TextMention("TERMINATE")
	})
	if err != nil {
		return nil, err
	}

	t := d.static(name, "Stock research swarm")
	if err := t.Orchestrator.AddAgent(swarm); err != nil {
		return nil, err
	}

	return t, nil
}
