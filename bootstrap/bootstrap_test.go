package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/model/openai"
	"github.com/hupe1980/agentcrew/model/resilience"
	"github.com/hupe1980/agentcrew/tool/builtin"
)

func mockConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Model.Provider = config.ProviderMock
	return cfg
}

func TestInit_Mock(t *testing.T) {
	rt, err := Init(context.Background(), mockConfig())
	require.NoError(t, err)

	assert.NotNil(t, rt.Logger)
	assert.IsType(t, &model.MockModel{}, rt.Model)
	assert.Nil(t, rt.Searcher)
}

func TestInit_SearcherAndResilience(t *testing.T) {
	cfg := mockConfig()
	cfg.Search.APIKey = "exa"
	cfg.Model.Resilience = &resilience.Options{RequestsPerSecond: 5, MaxRetries: 1}

	rt, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	assert.IsType(t, &builtin.ExaSearcher{}, rt.Searcher)
	assert.IsType(t, &resilience.Model{}, rt.Model)
}

func TestInit_Overrides(t *testing.T) {
	llm := model.NewScriptedModel("scripted")
	searcher := builtin.SearchFunc(func(context.Context, string) ([]builtin.SearchResult, error) { return nil, nil })

	rt, err := Init(context.Background(), config.Defaults(), func(o *Options) {
		o.Model = llm
		o.Searcher = searcher
	})
	require.NoError(t, err)
	assert.Same(t, llm, rt.Model)
	assert.NotNil(t, rt.Searcher)
}

func TestInit_InvalidLogLevel(t *testing.T) {
	cfg := mockConfig()
	cfg.Logger.Level = "loud"

	_, err := Init(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	for _, p := range []string{config.ProviderOpenAI, config.ProviderDeepSeek, config.ProviderLiteLLM, config.ProviderBedrockProxy} {
		m, err := NewModel(context.Background(), config.ModelConfig{Provider: p, APIKey: "k"})
		require.NoError(t, err, p)
		assert.IsType(t, &openai.Model{}, m, p)
	}

	_, err := NewModel(context.Background(), config.ModelConfig{Provider: "nope"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
