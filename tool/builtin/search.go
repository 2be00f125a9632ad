package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/tool"
)

const (
	// DefaultExaURL is the Exa search endpoint.
	DefaultExaURL = "https://api.exa.ai/search"
	// ExaAPIKeyEnv holds the Exa API key.
	ExaAPIKeyEnv = "EXA_API_KEY"

	defaultMaxCharacters = 10000
	maxSearchBodySize    = 4 << 20
)

// ErrMissingAPIKey is returned when a search backend has no credentials.
var ErrMissingAPIKey = errors.New("missing search API key")

// SearchResult is one web search hit.
type SearchResult struct {
	Title         string
	URL           string
	PublishedDate string
	Text          string
}

// Searcher performs web searches.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchFunc adapts a function into a Searcher.
type SearchFunc func(ctx context.Context, query string) ([]SearchResult, error)

// Search implements Searcher.
func (f SearchFunc) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return f(ctx, query)
}

// NewWebSearchTool exposes s as the web_search tool.
func NewWebSearchTool(s Searcher) *tool.FunctionTool {
	return tool.NewFunctionToolFromParams(WebSearchToolName, "Search and crawl the web, returning page contents as text",
		[]tool.Param{{Name: "query", Description: "The search query", Required: true}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return nil, tool.NewToolError(WebSearchToolName, "query must not be empty", tool.CodeValidation)
			}

			results, err := s.Search(tc.Context(), query)
			if err != nil {
				return nil, err
			}

			return FormatResults(query, results), nil
		},
	)
}

// FormatResults renders results as compact text for a model.
func FormatResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No search results found for %q.", query)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Search results for %q:\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   URL: %s\n", i+1, r.Title, r.URL)
		if r.PublishedDate != "" {
			fmt.Fprintf(&sb, "   Published: %s\n", r.PublishedDate)
		}
		fmt.Fprintf(&sb, "   %s\n\n", r.Text)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// ExaOptions configures an ExaSearcher.
type ExaOptions struct {
	APIKey        string
	URL           string
	MaxCharacters int
	NumResults    int
	HTTPClient    *http.Client
	Logger        logging.Logger
}

// ExaSearcher searches with the Exa API and returns page contents.
type ExaSearcher struct {
	client        *http.Client
	apiKey        string
	url           string
	maxCharacters int
	numResults    int
	logger        logging.Logger
}

// NewExaSearcher creates an Exa backend. The API key defaults to
// EXA_API_KEY; without one ErrMissingAPIKey is returned.
func NewExaSearcher(optFns ...func(o *ExaOptions)) (*ExaSearcher, error) {
	opts := ExaOptions{
		APIKey:        os.Getenv(ExaAPIKeyEnv),
		URL:           DefaultExaURL,
		MaxCharacters: defaultMaxCharacters,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, fmt.Errorf("exa: %w: set %s", ErrMissingAPIKey, ExaAPIKeyEnv)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &ExaSearcher{
		client:        client,
		apiKey:        opts.APIKey,
		url:           opts.URL,
		maxCharacters: opts.MaxCharacters,
		numResults:    opts.NumResults,
		logger:        logging.OrNoOp(opts.Logger),
	}, nil
}

type exaRequest struct {
	Query      string      `json:"query"`
	NumResults int         `json:"numResults,omitempty"`
	Contents   exaContents `json:"contents"`
}

type exaContents struct {
	Text exaText `json:"text"`
}

type exaText struct {
	MaxCharacters int `json:"maxCharacters"`
}

type exaResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		PublishedDate string `json:"publishedDate"`
		Text          string `json:"text"`
	} `json:"results"`
}

// Search implements Searcher.
func (s *ExaSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	payload, err := json.Marshal(exaRequest{
		Query:      query,
		NumResults: s.numResults,
		Contents:   exaContents{Text: exaText{MaxCharacters: s.maxCharacters}},
	})
	if err != nil {
		return nil, fmt.Errorf("exa: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("exa: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa: search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		return nil, fmt.Errorf("exa: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exa: search failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out exaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("exa: parse response: %w", err)
	}

	results := make([]SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			PublishedDate: r.PublishedDate,
			Text:          r.Text,
		})
	}

	s.logger.Debug("tool.web_search.completed", "backend", "exa", "query", query, "results", len(results))

	return results, nil
}
