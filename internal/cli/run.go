package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew/repl"
	"github.com/hupe1980/agentcrew/teams"
)

const userProxyLabel = "Enter your response: "

type runFlags struct {
	streaming    bool
	showMetadata bool
	task         string
	userID       string
	sessionID    string
}

func newRunCommand(app App, g *globalFlags) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <team>",
		Short: "Chat with a team",
		Long: `Run starts the interactive console for a team. Type 'quit' to exit.

With --task the team answers a single request and the command exits.
Run "agentcrew teams" for the list of teams.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTeam(cmd.Context(), app, g, f, args[0])
		},
	}

	cmd.Flags().BoolVar(&f.streaming, "streaming", false, "print tokens as they arrive")
	cmd.Flags().BoolVar(&f.showMetadata, "show-metadata", false, "print routing metadata after each answer")
	cmd.Flags().StringVar(&f.task, "task", "", "answer a single request and exit")
	cmd.Flags().StringVar(&f.userID, "user", "", "user id (default from config or user123)")
	cmd.Flags().StringVar(&f.sessionID, "session", "", "session id (default random)")

	return cmd
}

func runTeam(ctx context.Context, app App, g *globalFlags, f *runFlags, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := g.runtime(ctx, app)
	if err != nil {
		return err
	}

	crewCfg := crewConfig(rt.Config.Orchestrator)

	var loop *repl.Loop

	deps := teams.Deps{
		Model:                    rt.Model,
		Streaming:                f.streaming || rt.Config.Model.Streaming,
		Searcher:                 rt.Searcher,
		Config:                   &crewCfg,
		MaxConcurrentInvocations: rt.Config.Orchestrator.MaxConcurrentInvocations,
		Logger:                   rt.Logger.WithComponent("team"),
		UserID:                   firstNonEmpty(f.userID, rt.Config.Session.UserID),
		SessionID:                firstNonEmpty(f.sessionID, rt.Config.Session.SessionID),
		Input: func(ctx context.Context, _ string) (string, error) {
			return loop.Ask(ctx, userProxyLabel)
		},
	}
	if deps.Streaming {
		deps.Callbacks.OnLLMNewToken = func(token string) { fmt.Fprint(app.Out, token) }
	}

	team, err := teams.Build(name, deps)
	if err != nil {
		return err
	}

	rt.Logger.Debug("cli.run", "team", team.Name, "user", team.UserID, "session", team.SessionID)

	loop = repl.New(team, func(o *repl.Options) {
		o.In = app.In
		o.Out = app.Out
		o.ShowMetadata = f.showMetadata
		o.Logger = rt.Logger
	})

	if f.task == "" {
		return loop.Run(ctx)
	}

	resp, err := team.Handle(ctx, f.task)
	if err != nil {
		return err
	}

	loop.Print(resp)

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
