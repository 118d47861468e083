package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/quickhost/cmd/quickhost/handlers"
)

// Update returns the update command.
func Update(g *handlers.Globals) *cobra.Command {
	var opts handlers.UpdateOptions

	cmd := &cobra.Command{
		Use:   "update APP",
		Short: "Open more ports on an app's firewall",
		Long: `Update adds ingress rules to the security group of APP.

Existing rules are kept. Your current public IP is always allowed.

Example:
  quickhost update web --port 443 --cidr 0.0.0.0/0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.App = args[0]
			return handlers.Update(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().Int32SliceVarP(&opts.Ports, "port", "p", nil, "TCP port to open, repeatable (required)")
	cmd.Flags().StringSliceVar(&opts.CIDRs, "cidr", nil, "Extra CIDR allowed to connect, repeatable; a bare IP means /32")
	_ = cmd.MarkFlagRequired("port")

	return cmd
}
