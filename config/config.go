// Package config loads application settings from YAML, .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model/resilience"
)

// Model providers.
const (
	ProviderBedrock      = "bedrock"
	ProviderOpenAI       = "openai"
	ProviderDeepSeek     = "deepseek"
	ProviderLiteLLM      = "litellm"
	ProviderBedrockProxy = "bedrock-proxy"
	ProviderAnthropic    = "anthropic"
	ProviderMock         = "mock"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level application configuration.
type Config struct {
	Model        ModelConfig        `yaml:"model"`
	Logger       LoggerConfig       `yaml:"logger"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Search       SearchConfig       `yaml:"search"`
	Session      SessionConfig      `yaml:"session"`
}

// ModelConfig selects and tunes the language model.
type ModelConfig struct {
	Provider    string        `yaml:"provider"`
	ID          string        `yaml:"id"`
	Region      string        `yaml:"region"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
	Streaming   bool          `yaml:"streaming"`

	// AccessKeyID and SecretAccessKey select static Bedrock credentials.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// Resilience wraps the model with a rate limiter and circuit breaker
	// when set.
	Resilience *resilience.Options `yaml:"resilience,omitempty"`
}

// LoggerConfig configures logging.
type LoggerConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// OrchestratorConfig mirrors the routing options of the orchestrator.
type OrchestratorConfig struct {
	LogAgentChat                    bool   `yaml:"log_agent_chat"`
	LogClassifierChat               bool   `yaml:"log_classifier_chat"`
	LogClassifierRawOutput          bool   `yaml:"log_classifier_raw_output"`
	LogClassifierOutput             bool   `yaml:"log_classifier_output"`
	LogExecutionTimes               bool   `yaml:"log_execution_times"`
	MaxRetries                      int    `yaml:"max_retries"`
	UseDefaultAgentIfNoneIdentified bool   `yaml:"use_default_agent_if_none_identified"`
	NoSelectedAgentMessage          string `yaml:"no_selected_agent_message"`
	MaxMessagePairsPerAgent         int    `yaml:"max_message_pairs_per_agent"`
	MaxConcurrentInvocations        int64  `yaml:"max_concurrent_invocations"`
}

// SearchConfig configures the web search backend.
type SearchConfig struct {
	APIKey        string `yaml:"api_key"`
	URL           string `yaml:"url"`
	MaxCharacters int    `yaml:"max_characters"`
	NumResults    int    `yaml:"num_results"`
}

// SessionConfig holds the identifiers used by interactive runs.
type SessionConfig struct {
	UserID    string `yaml:"user_id"`
	SessionID string `yaml:"session_id"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    ProviderBedrock,
			ID:          "us.amazon.nova-pro-v1:0",
			Region:      "us-east-1",
			MaxTokens:   3000,
			Temperature: 0.7,
			TopP:        0.9,
			Timeout:     120 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "warn",
			Format: "text",
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries:                      3,
			UseDefaultAgentIfNoneIdentified: true,
			MaxMessagePairsPerAgent:         10,
			MaxConcurrentInvocations:        10,
		},
		Search: SearchConfig{
			URL:           "https://api.exa.ai/search",
			MaxCharacters: 10000,
		},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnv loads .env files into the process environment. Variables that are
// already set win. Without arguments ".env" is loaded if present.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}

	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	return nil
}

// ApplyEnvOverrides maps AGENTCREW_* and provider credential variables to
// config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTCREW_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("AGENTCREW_MODEL_ID"); v != "" {
		cfg.Model.ID = v
	}
	if v := os.Getenv("AGENTCREW_MODEL_REGION"); v != "" {
		cfg.Model.Region = v
	}
	if v := os.Getenv("AGENTCREW_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("AGENTCREW_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("AGENTCREW_MODEL_STREAMING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Model.Streaming = b
		}
	}
	if v := os.Getenv("ACCESS_KEY_ID"); v != "" && cfg.Model.AccessKeyID == "" {
		cfg.Model.AccessKeyID = v
	}
	if v := os.Getenv("SECRET_ACCESS_KEY"); v != "" && cfg.Model.SecretAccessKey == "" {
		cfg.Model.SecretAccessKey = v
	}
	if v := os.Getenv("EXA_API_KEY"); v != "" && cfg.Search.APIKey == "" {
		cfg.Search.APIKey = v
	}
}

// Validate checks the configuration.
func Validate(cfg *Config) error {
	var errs []error

	switch strings.ToLower(cfg.Model.Provider) {
	case ProviderBedrock, ProviderOpenAI, ProviderDeepSeek, ProviderLiteLLM, ProviderBedrockProxy, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", cfg.Model.Provider))
	}

	if _, err := logging.ParseLevel(cfg.Logger.Level); err != nil {
		errs = append(errs, fmt.Errorf("logger.level: %w", err))
	}

	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format: unknown format %q", cfg.Logger.Format))
	}

	if cfg.Model.MaxTokens < 0 {
		errs = append(errs, errors.New("model.max_tokens: must not be negative"))
	}
	if cfg.Orchestrator.MaxRetries < 1 {
		errs = append(errs, errors.New("orchestrator.max_retries: must be at least 1"))
	}
	if cfg.Orchestrator.MaxMessagePairsPerAgent < 0 {
		errs = append(errs, errors.New("orchestrator.max_message_pairs_per_agent: must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}
