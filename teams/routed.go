package teams

import (
	"fmt"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
	"github.com/hupe1980/agentcrew/tool/builtin"
)

const healthDescription = "Focuses on health and medical topics such as general wellness, nutrition, diseases, treatments, mental health, fitness, healthcare systems, and medical terminology or concepts."

// Supervisor builds a health assistant next to a support team lead whose
// team includes a nested social media supervisor.
func Supervisor(d Deps) (*Team, error) {
	if err := d.check("supervisor"); err != nil {
		return nil, err
	}

	t := d.routed("supervisor", "Health assistant and hotel support team", false)

	health, err := d.agent(member{name: "Health Assistant", description: healthDescription, streaming: true})
	if err != nil {
		return nil, err
	}

	staff, err := d.agents(
		member{
			name:        "Hotel Service",
			description: "customer service for booking hotel",
			instruction: "You are the hotel booking service. Help guests find rooms, check availability and make, change or cancel reservations. Ask for missing details such as dates, number of guests and room type.",
			streaming:   true,
		},
		member{name: "Complaint Agent", description: "负责处理用户投诉，安抚用户", streaming: true},
	)
	if err != nil {
		return nil, err
	}

	campaign, err := d.agents(
		member{name: "social-media-campaign-manager", description: "a strategic campaign manager who orchestrates social media campaigns from concept to execution."},
		member{name: "content-strategist", description: "a social media content strategist with expertise in converting business goals into engaging social posts. Your task is to generate creative, on-brand content ideas that align with specified campaign goals and target audience. Each suggestion should include a topic, content type (image/video/text/poll), specific copy, and relevant hashtags. Focus on variety, authenticity, and ensuring each post serves a strategic purpose."},
		member{name: "engagement-predictor", description: "You are a social media analytics expert who predicts post performance and optimal timing. For each content idea, analyze potential reach and engagement based on content type, industry benchmarks, and audience behavior patterns. Your task is to estimate reach, engagement rate, and determine the best posting time (day/hour). Support each prediction with data-driven reasoning and industry-specific insights. Focus on actionable metrics that will maximize campaign impact."},
	)
	if err != nil {
		return nil, err
	}

	social, err := agent.NewSupervisorAgent(campaign[0], asAgents(campaign[1:]...))
	if err != nil {
		return nil, err
	}

	lead, err := d.agent(member{name: "Support Team Lead", description: "处理酒店客服咨询，预定，投诉等，同时也能做营销助手"})
	if err != nil {
		return nil, err
	}

	support, err := agent.NewSupervisorAgent(lead, append(asAgents(staff...), social))
	if err != nil {
		return nil, err
	}

	for _, a := range []core.Agent{health, support} {
		if err := t.Orchestrator.AddAgent(a); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// TranslationChain builds the translate, review and edit chain. The chain
// is the default agent and the chief translator sees each request's source
// text through the user_input placeholder.
func TranslationChain(d Deps) (*Team, error) {
	if err := d.check("translation-chain"); err != nil {
		return nil, err
	}

	t := d.routed("translation-chain", "English to Chinese translation chain", true)

	members, err := d.agents(
		member{name: "Translation Agent", description: "Translation Agent", instruction: translatorPrompt},
		member{name: "Review Agent", description: "Review Agent reviews the translations", instruction: reviewerPrompt},
		member{name: "Chief Translation Agent", description: "Chief Translation Agent for final translation", instruction: chiefTranslatorPrompt},
	)
	if err != nil {
		return nil, err
	}

	translator, reviewer, chief := members[0], members[1], members[2]

	translator.SetPromptVariables(map[string]string{"source_lang": "English", "target_lang": "Chinese"})
	reviewer.SetPromptVariables(map[string]string{"source_lang": "English", "target_lang": "Chinese", "country": "China"})

	chain, err := agent.NewChainAgent("TranslationChainAgent", asAgents(members...)...)
	if err != nil {
		return nil, err
	}
	chain.SetDescription("A simple translation chain of multiple agents")

	if err := t.Orchestrator.SetDefaultAgent(chain); err != nil {
		return nil, err
	}

	t.Prepare = func(input string) {
		chief.SetPromptVariables(map[string]string{"source_lang": "English", "target_lang": "Chinese", "user_input": input})
	}

	return t, nil
}

// Weather builds a weather agent with the weather tool next to knowledge
// and health agents.
func Weather(d Deps) (*Team, error) {
	if err := d.check("weather"); err != nil {
		return nil, err
	}

	t := d.routed("weather", "Weather, knowledge and health agents", false)

	weatherTool := builtin.NewWeatherTool(func(o *builtin.WeatherOptions) { o.Name = "weather_tool" })

	members, err := d.agents(
		member{name: "Weather Agent", description: "Provide weather report", streaming: true, tools: []tool.Tool{weatherTool}},
		member{name: "Knowledge Agent", description: "Knowledge of Amazon Generative AI services and products, such as Bedrock, SageMaker etc.", streaming: true},
		member{name: "Health Agent", description: healthDescription, streaming: true},
	)
	if err != nil {
		return nil, err
	}

	for _, a := range members {
		if err := t.Orchestrator.AddAgent(a); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// StockResearch builds a planner supervising financial, news and writer
// agents with the mock market tools.
func StockResearch(d Deps) (*Team, error) {
	if err := d.check("stock-research"); err != nil {
		return nil, err
	}

	t := d.routed("stock-research", "Stock market research team", false)

	members, err := d.agents(
		member{name: "planner-manager", description: "a research planning coordinator.", instruction: stockPlannerPrompt, streaming: true},
		member{name: "financial_analyst", description: "For stock data analysis", instruction: financialAnalystPrompt, streaming: true, tools: []tool.Tool{builtin.NewStockDataTool()}},
		member{name: "news_analyst", description: "a news analyst.", instruction: newsAnalystPrompt, streaming: true, tools: []tool.Tool{builtin.NewNewsTool()}},
		member{name: "writer", description: "financial report writer.", instruction: writerPrompt, streaming: true},
	)
	if err != nil {
		return nil, err
	}

	if err := addResearchSupervisor(t, members); err != nil {
		return nil, err
	}

	return t, nil
}

// DeepResearch builds a planner supervising web search analysts.
func DeepResearch(d Deps) (*Team, error) {
	if err := d.check("deep-research"); err != nil {
		return nil, err
	}
	if d.Searcher == nil {
		return nil, fmt.Errorf("team deep-research: %w: searcher", ErrMissingDependency)
	}

	t := d.routed("deep-research", "Deep web research team", false)

	members, err := d.agents(
		member{name: "planner-manager", description: "a research planning coordinator.", instruction: deepPlannerPrompt, streaming: true},
		member{name: "information_analyst", description: "For internet search and analysis", instruction: infoAnalystPrompt, streaming: true, tools: []tool.Tool{builtin.NewWebSearchTool(d.Searcher)}},
		member{name: "critic_analyst", description: "a critic analyst.", instruction: criticPrompt, streaming: true, tools: []tool.Tool{builtin.NewWebSearchTool(d.Searcher)}},
	)
	if err != nil {
		return nil, err
	}

	if err := addResearchSupervisor(t, members); err != nil {
		return nil, err
	}

	return t, nil
}

func addResearchSupervisor(t *Team, members []*agent.ModelAgent) error {
	planner, err := agent.NewSupervisorAgent(members[0], asAgents(members[1:]...), func(o *agent.SupervisorOptions) {
		o.Name = "SupervisorAgent"
		o.Description = "You are a supervisor agent that manages the team of agents for deep research"
	})
	if err != nil {
		return err
	}

	return t.Orchestrator.AddAgent(planner)
}
