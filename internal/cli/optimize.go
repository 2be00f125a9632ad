package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/optimizer"
)

// message is the file format of one conversation turn.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// trajectory is the file format of a conversation with feedback.
type trajectory struct {
	Messages []message         `json:"messages"`
	Feedback map[string]string `json:"feedback"`
}

var exampleTrajectory = trajectory{
	Messages: []message{
		{Role: core.RoleUser, Content: "Tell me about the solar system"},
		{Role: core.RoleAssistant, Content: "The solar system consists of..."},
	},
	Feedback: map[string]string{"clarity": "needs more structure"},
}

type optimizeFlags struct {
	kind         string
	prompt       string
	trajectories string
}

func newOptimizeCommand(app App, g *globalFlags) *cobra.Command {
	f := &optimizeFlags{}

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Improve a system prompt from conversations with feedback",
		Long: `Optimize asks the model for a better system prompt.

The trajectories file is a JSON array of objects with "messages"
([{"role": "user", "content": "..."}]) and "feedback" ({"clarity": "..."}).
Without a file a built-in example conversation is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := optimizer.ParseKind(f.kind)
			if err != nil {
				return err
			}

			trajectories, err := loadTrajectories(f.trajectories)
			if err != nil {
				return err
			}

			rt, err := g.runtime(cmd.Context(), app)
			if err != nil {
				return err
			}

			opt, err := optimizer.New(rt.Model, func(o *optimizer.Options) {
				o.Kind = kind
				o.Logger = rt.Logger.WithComponent("optimizer")
			})
			if err != nil {
				return err
			}

			improved, err := opt.Optimize(cmd.Context(), trajectories, f.prompt)
			if err != nil {
				return err
			}

			fmt.Fprintln(app.Out, improved)

			return nil
		},
	}

	cmd.Flags().StringVar(&f.kind, "kind", string(optimizer.KindMetaprompt), "optimizer kind (metaprompt, gradient, prompt_memory)")
	cmd.Flags().StringVar(&f.prompt, "prompt", "You are an astronomy expert", "prompt to improve")
	cmd.Flags().StringVar(&f.trajectories, "trajectories", "", "JSON file with conversations and feedback")

	return cmd
}

func loadTrajectories(path string) ([]optimizer.Trajectory, error) {
	raw := []trajectory{exampleTrajectory}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read trajectories: %w", err)
		}

		raw = nil
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse trajectories: %w", err)
		}
	}

	out := make([]optimizer.Trajectory, 0, len(raw))
	for _, t := range raw {
		out = append(out, optimizer.Trajectory{Messages: toContents(t.Messages), Feedback: t.Feedback})
	}

	return out, nil
}

func toContents(msgs []message) []core.Content {
	out := make([]core.Content, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role == "" {
			role = core.RoleUser
		}
		out = append(out, core.NewTextContent(role, m.Content))
	}
	return out
}
