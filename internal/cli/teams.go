package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew/teams"
)

func newTeamsCommand(app App) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List the bundled teams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			for _, e := range teams.Catalog() {
				fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Description)
			}
			return w.Flush()
		},
	}
}
