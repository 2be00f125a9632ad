package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/tool"
)

func toolContext() *core.ToolContext {
	tc, _ := testutil.NewToolContext("Weather Agent", "fc1")
	return tc
}

func TestWeatherTool(t *testing.T) {
	wt := NewWeatherTool()
	assert.Equal(t, WeatherToolName, wt.Name())

	res, err := wt.Call(toolContext(), map[string]any{"location": "Beijing"})
	require.NoError(t, err)
	assert.Equal(t, "It is sunny in Beijing with 30 celsius!", res)

	res, err = wt.Call(toolContext(), map[string]any{"location": "Austin", "units": "fahrenheit"})
	require.NoError(t, err)
	assert.Equal(t, "It is sunny in Austin with 30 fahrenheit!", res)

	_, err = wt.Call(toolContext(), map[string]any{"location": "Oslo", "units": "kelvin"})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)

	named := NewWeatherTool(func(o *WeatherOptions) { o.Name = "weather_tool" })
	assert.Equal(t, "weather_tool", named.Name())
}

func TestStockDataTool(t *testing.T) {
	res, err := NewStockDataTool().Call(toolContext(), map[string]any{"symbol": "TSLA"})
	require.NoError(t, err)

	data, ok := res.(StockData)
	require.True(t, ok)
	assert.Equal(t, 180.25, data.Price)
	assert.Equal(t, GetStockData("AAPL"), data)

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":180.25,"volume":1000000,"pe_ratio":65.4,"market_cap":"700B"}`, string(raw))
}

func TestNewsTool(t *testing.T) {
	res, err := NewNewsTool().Call(toolContext(), map[string]any{"query": "Tesla"})
	require.NoError(t, err)

	articles, ok := res.([]Article)
	require.True(t, ok)
	require.Len(t, articles, 3)
	assert.Equal(t, "Tesla Expands Cybertruck Production", articles[0].Title)
	assert.Equal(t, "2024-03-18", articles[2].Date)
}

func TestWebSearchTool(t *testing.T) {
	var got string
	s := SearchFunc(func(_ context.Context, query string) ([]SearchResult, error) {
		got = query
		return []SearchResult{{Title: "Tesla Q3", URL: "https://example.com/q3", Text: "Deliveries rose."}}, nil
	})

	res, err := NewWebSearchTool(s).Call(toolContext(), map[string]any{"query": "tesla deliveries"})
	require.NoError(t, err)
	assert.Equal(t, "tesla deliveries", got)
	assert.Equal(t, "Search results for \"tesla deliveries\":\n\n1. Tesla Q3\n   URL: https://example.com/q3\n   Deliveries rose.", res)

	_, err = NewWebSearchTool(s).Call(toolContext(), map[string]any{"query": "  "})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)

	failing := SearchFunc(func(context.Context, string) ([]SearchResult, error) { return nil, errors.New("boom") })
	_, err = NewWebSearchTool(failing).Call(toolContext(), map[string]any{"query": "x"})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeExecution, toolErr.Code)
}

func TestFormatResults_Empty(t *testing.T) {
	assert.Equal(t, `No search results found for "nothing".`, FormatResults("nothing", nil))
}

func TestExaSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ev market", body["query"])
		assert.Equal(t, map[string]any{"text": map[string]any{"maxCharacters": float64(10000)}}, body["contents"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"title":"EV report","url":"https://example.com/ev","publishedDate":"2024-03-01","text":"Sales grew."}]}`))
	}))
	defer srv.Close()

	s, err := NewExaSearcher(func(o *ExaOptions) {
		o.APIKey = "secret"
		o.URL = srv.URL
	})
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "ev market")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, SearchResult{Title: "EV report", URL: "https://example.com/ev", PublishedDate: "2024-03-01", Text: "Sales grew."}, results[0])
}

func TestExaSearcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s, err := NewExaSearcher(func(o *ExaOptions) {
		o.APIKey = "bad"
		o.URL = srv.URL
	})
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.Contains(t, err.Error(), "invalid key")
}

func TestExaSearcher_APIKey(t *testing.T) {
	t.Setenv(ExaAPIKeyEnv, "")

	_, err := NewExaSearcher()
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	t.Setenv(ExaAPIKeyEnv, "from-env")

	s, err := NewExaSearcher()
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.apiKey)
}
