// Package cli implements the agentcrew command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew"
	"github.com/hupe1980/agentcrew/bootstrap"
	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool/builtin"
)

// App carries the streams and optional dependency overrides of a command
// invocation.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Model replaces the configured model provider.
	Model model.Model
	// Searcher replaces the configured search backend.
	Searcher builtin.Searcher
}

type globalFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
	logFormat  string
	provider   string
	modelID    string
}

// NewRootCommand builds the command tree.
func NewRootCommand(app App) *cobra.Command {
	if app.In == nil {
		app.In = os.Stdin
	}
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Err == nil {
		app.Err = os.Stderr
	}

	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "agentcrew",
		Short: "Run multi-agent LLM teams from the console",
		Long: `agentcrew routes console requests to teams of LLM agents.

Examples:
  agentcrew teams                       List the bundled teams
  agentcrew run weather                 Chat with the weather team
  agentcrew run stock-research --task "Conduct market research for TSLA stock"
  agentcrew optimize --kind gradient    Improve a prompt from feedback
  agentcrew profile                     Extract a user profile from a conversation`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "agentcrew.yaml", "config file")
	pf.StringSliceVar(&g.envFiles, "env-file", nil, ".env files to load (default .env when present)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "", "log format (text, json)")
	pf.StringVar(&g.provider, "provider", "", "model provider (bedrock, openai, deepseek, litellm, bedrock-proxy, anthropic, mock)")
	pf.StringVar(&g.modelID, "model", "", "model id")

	root.AddCommand(
		newTeamsCommand(app),
		newRunCommand(app, g),
		newOptimizeCommand(app, g),
		newProfileCommand(app, g),
	)

	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCommand(App{})
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

// runtime loads configuration, applies flag overrides and builds the
// process runtime.
func (g *globalFlags) runtime(ctx context.Context, app App) (*bootstrap.Runtime, error) {
	if err := config.LoadEnv(g.envFiles...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}

	if g.logLevel != "" {
		cfg.Logger.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logger.Format = g.logFormat
	}
	if g.provider != "" {
		cfg.Model.Provider = g.provider
	}
	if g.modelID != "" {
		cfg.Model.ID = g.modelID
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return bootstrap.Init(ctx, cfg, func(o *bootstrap.Options) {
		o.Model = app.Model
		o.Searcher = app.Searcher
	})
}

// crewConfig maps the orchestrator section onto the routing policy.
func crewConfig(c config.OrchestratorConfig) agentcrew.Config {
	cfg := agentcrew.DefaultConfig()

	cfg.LogAgentChat = c.LogAgentChat
	cfg.LogClassifierChat = c.LogClassifierChat
	cfg.LogClassifierRawOutput = c.LogClassifierRawOutput
	cfg.LogClassifierOutput = c.LogClassifierOutput
	cfg.LogExecutionTimes = c.LogExecutionTimes
	if c.MaxRetries > 0 {
		cfg.MaxRetries = c.MaxRetries
	}
	if c.MaxMessagePairsPerAgent > 0 {
		cfg.MaxMessagePairsPerAgent = c.MaxMessagePairsPerAgent
	}

	return cfg
}
