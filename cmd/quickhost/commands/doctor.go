package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/quickhost/cmd/quickhost/handlers"
)

// Doctor returns the doctor command.
func Doctor(g *handlers.Globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the local setup",
		Long: `Doctor checks the local machine without calling AWS:
  - The region is supported
  - The profile has credentials in ~/.aws
  - The ssh client is installed
  - Whether output goes to a terminal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), *g, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")

	return cmd
}
