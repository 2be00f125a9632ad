package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/memory"
)

var exampleConversation = []message{
	{Role: core.RoleUser, Content: "Hi! I'm Alex but please call me Lex. I'm a wizard at Python and love making AI systems that don't sound like boring corporate robots 🤖"},
	{Role: core.RoleAssistant, Content: "Nice to meet you, Lex! Love the anti-corporate-robot stance. How would you like me to communicate with you?"},
	{Role: core.RoleUser, Content: "Keep it casual and witty - and maybe throw in some relevant emojis when it feels right ✨ Also, besides AI, I do competitive speedcubing!"},
}

func newProfileCommand(app App, g *globalFlags) *cobra.Command {
	var conversationPath string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Extract a user profile from a conversation",
		Long: `Profile extracts the user's name, preferred name, response style,
skills and other preferences from a conversation.

The conversation file is a JSON array of {"role", "content"} objects.
Without a file a built-in example conversation is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conversation := exampleConversation
			if conversationPath != "" {
				data, err := os.ReadFile(conversationPath)
				if err != nil {
					return fmt.Errorf("read conversation: %w", err)
				}
				conversation = nil
				if err := json.Unmarshal(data, &conversation); err != nil {
					return fmt.Errorf("parse conversation: %w", err)
				}
			}

			rt, err := g.runtime(cmd.Context(), app)
			if err != nil {
				return err
			}

			manager, err := memory.NewManager[memory.UserProfile](rt.Model, "UserProfile", "Save the user's preferences.", func(o *memory.ManagerOptions) {
				o.Instructions = "Extract user preferences and settings"
				o.Logger = rt.Logger.WithComponent("memory")
			})
			if err != nil {
				return err
			}

			profiles, err := manager.Extract(cmd.Context(), toContents(conversation))
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				return fmt.Errorf("no profile extracted")
			}

			enc := json.NewEncoder(app.Out)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)

			return enc.Encode(profiles[0])
		},
	}

	cmd.Flags().StringVar(&conversationPath, "conversation", "", "JSON file with the conversation")

	return cmd
}
