package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/quickhost/cmd/quickhost/handlers"
)

// Describe returns the describe command.
func Describe(g *handlers.Globals) *cobra.Command {
	var opts handlers.DescribeOptions

	cmd := &cobra.Command{
		Use:   "describe APP",
		Short: "Show what an app owns and how to connect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.App = args[0]
			return handlers.Describe(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.KeyFile, "key-file", "f", "", "Private key of the app (default: ./APP.pem)")
	cmd.Flags().BoolVar(&opts.ShowPassword, "show-password", false, "Decrypt the administrator password of Windows hosts")

	return cmd
}

// ListAll returns the list-all command.
func ListAll(g *handlers.Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list-all",
		Short: "List apps with running hosts in the region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ListAll(cmd.Context(), *g)
		},
	}
}
