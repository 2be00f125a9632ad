// Package bootstrap builds the process-wide runtime (logger, model and
// search backend) from a loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/model/anthropic"
	"github.com/hupe1980/agentcrew/model/bedrock"
	"github.com/hupe1980/agentcrew/model/openai"
	"github.com/hupe1980/agentcrew/model/resilience"
	"github.com/hupe1980/agentcrew/tool/builtin"
)

// Runtime holds the dependencies shared by every team of a process.
type Runtime struct {
	Config *config.Config
	Logger *logging.CrewLogger
	Model  model.Model
	// Searcher is nil when no search API key is configured.
	Searcher builtin.Searcher
}

// Options customizes Init.
type Options struct {
	// Model replaces the configured provider.
	Model model.Model
	// Searcher replaces the configured search backend.
	Searcher builtin.Searcher
}

// Init builds a Runtime from cfg.
func Init(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if cfg == nil {
		cfg = config.Defaults()
	}

	logger, err := NewLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}

	llm := opts.Model
	if llm == nil {
		llm, err = NewModel(ctx, cfg.Model)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Model.Resilience != nil {
		ro := *cfg.Model.Resilience
		ro.Logger = logger.WithComponent("resilience")
		llm = resilience.New(llm, func(o *resilience.Options) { *o = ro })
	}

	searcher := opts.Searcher
	if searcher == nil && cfg.Search.APIKey != "" {
		exa, err := builtin.NewExaSearcher(func(o *builtin.ExaOptions) {
			o.APIKey = cfg.Search.APIKey
			if cfg.Search.URL != "" {
				o.URL = cfg.Search.URL
			}
			if cfg.Search.MaxCharacters > 0 {
				o.MaxCharacters = cfg.Search.MaxCharacters
			}
			o.NumResults = cfg.Search.NumResults
			o.Logger = logger.WithComponent("search")
		})
		if err != nil {
			return nil, err
		}
		searcher = exa
	}

	info := llm.Info()
	logger.Debug("bootstrap.ready", "provider", info.Provider, "model", info.Name, "search", searcher != nil)

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Model:    llm,
		Searcher: searcher,
	}, nil
}

// NewLogger builds the process logger.
func NewLogger(cfg config.LoggerConfig) (*logging.CrewLogger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	return logging.NewSlogLogger(level, strings.ToLower(cfg.Format), cfg.AddSource), nil
}

// NewModel creates the model adapter for the configured provider.
func NewModel(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderBedrock:
		m, err := bedrock.NewModel(ctx, func(o *bedrock.Options) {
			setIf(&o.ModelID, cfg.ID)
			setIf(&o.Region, cfg.Region)
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int32(cfg.MaxTokens)
			}
			o.Temperature = float32(cfg.Temperature)
			o.TopP = float32(cfg.TopP)
			if cfg.Timeout > 0 {
				o.Timeout = cfg.Timeout
			}
			o.AccessKeyID = cfg.AccessKeyID
			o.SecretAccessKey = cfg.SecretAccessKey
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock model: %w", err)
		}
		return m, nil
	case config.ProviderOpenAI:
		return openai.NewModel(openAIOptions(cfg, nil)), nil
	case config.ProviderDeepSeek:
		return openai.NewModel(openAIOptions(cfg, &openai.PresetDeepSeek)), nil
	case config.ProviderLiteLLM:
		return openai.NewModel(openAIOptions(cfg, &openai.PresetLiteLLM)), nil
	case config.ProviderBedrockProxy:
		return openai.NewModel(openAIOptions(cfg, &openai.PresetBedrockProxy)), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.ID != "" && !strings.HasPrefix(cfg.ID, "us.") {
				o.Model = anthropicsdk.Model(cfg.ID)
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			o.Temperature = cfg.Temperature
			setIf(&o.APIKey, cfg.APIKey)
			setIf(&o.BaseURL, cfg.BaseURL)
		}), nil
	case config.ProviderMock:
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.Provider)
	}
}

// openAIOptions maps the config onto the OpenAI adapter. With a preset the
// model id of the config only applies when it is not a Bedrock id.
func openAIOptions(cfg config.ModelConfig, preset *openai.Preset) func(o *openai.Options) {
	return func(o *openai.Options) {
		setIf(&o.APIKey, cfg.APIKey)
		if preset != nil {
			openai.WithPreset(*preset)(o)
		}
		if cfg.ID != "" && !strings.HasPrefix(cfg.ID, "us.") {
			o.Model = cfg.ID
		}
		setIf(&o.BaseURL, cfg.BaseURL)
		if cfg.MaxTokens > 0 {
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
		}
		o.Temperature = cfg.Temperature
		o.TopP = cfg.TopP
		o.Timeout = cfg.Timeout
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
