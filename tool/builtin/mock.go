package builtin

import (
	"fmt"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
)

// Tool names.
const (
	WeatherToolName   = "get_weather"
	StockDataToolName = "get_stock_data"
	NewsToolName      = "get_news"
	WebSearchToolName = "web_search"
)

// StockData is the fixed market snapshot returned by the stock tool.
type StockData struct {
	Price     float64 `json:"price"`
	Volume    int     `json:"volume"`
	PERatio   float64 `json:"pe_ratio"`
	MarketCap string  `json:"market_cap"`
}

// Article is a news item.
type Article struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Summary string `json:"summary"`
}

// WeatherOptions configures the weather tool.
type WeatherOptions struct {
	// Name overrides the registered tool name.
	Name string
}

// NewWeatherTool returns a tool that reports sunny weather anywhere.
func NewWeatherTool(optFns ...func(o *WeatherOptions)) *tool.FunctionTool {
	opts := WeatherOptions{Name: WeatherToolName}
	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewFunctionToolFromParams(opts.Name, "Get the current weather in a given location",
		[]tool.Param{
			{Name: "location", Description: "The city and state, e.g. San Francisco, CA", Required: true},
			{Name: "units", Description: "The unit of temperature", Enum: []string{"celsius", "fahrenheit"}, Default: "celsius"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			location, _ := args["location"].(string)
			units, _ := args["units"].(string)

			return Weather(location, units), nil
		},
	)
}

// Weather is the weather mock.
func Weather(location, units string) string {
	if units == "" {
		units = "celsius"
	}

	return fmt.Sprintf("It is sunny in %s with 30 %s!", location, units)
}

// NewStockDataTool returns a tool with fixed market data for any symbol.
func NewStockDataTool() *tool.FunctionTool {
	return tool.NewFunctionToolFromParams(StockDataToolName, "Get stock market data for a given symbol",
		[]tool.Param{{Name: "symbol", Description: "Ticker symbol, e.g. TSLA", Required: true}},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			symbol, _ := args["symbol"].(string)
			return GetStockData(symbol), nil
		},
	)
}

// GetStockData is the stock data mock.
func GetStockData(string) StockData {
	return StockData{Price: 180.25, Volume: 1000000, PERatio: 65.4, MarketCap: "700B"}
}

// NewNewsTool returns a tool with three fixed Tesla headlines.
func NewNewsTool() *tool.FunctionTool {
	return tool.NewFunctionToolFromParams(NewsToolName, "Get recent news articles about a company",
		[]tool.Param{{Name: "query", Description: "Company or topic", Required: true}},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			return GetNews(query), nil
		},
	)
}

// GetNews is the news mock.
func GetNews(string) []Article {
	return []Article{
		{
			Title:   "Tesla Expands Cybertruck Production",
			Date:    "2024-03-20",
			Summary: "Tesla ramps up Cybertruck manufacturing capacity at Gigafactory Texas, aiming to meet strong demand.",
		},
		{
			Title:   "Tesla FSD Beta Shows Promise",
			Date:    "2024-03-19",
			Summary: "Latest Full Self-Driving beta demonstrates significant improvements in urban navigation and safety features.",
		},
		{
			Title:   "Model Y Dominates Global EV Sales",
			Date:    "2024-03-18",
			Summary: "Tesla's Model Y becomes best-selling electric vehicle worldwide, capturing significant market share.",
		},
	}
}
