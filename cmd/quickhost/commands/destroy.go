package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/quickhost/cmd/quickhost/handlers"
)

// Destroy returns the destroy command.
func Destroy(g *handlers.Globals) *cobra.Command {
	var opts handlers.DestroyOptions

	cmd := &cobra.Command{
		Use:   "destroy APP",
		Short: "Destroy an app's hosts, key pair and firewall",
		Long: `Destroy removes everything quickhost made for APP:
  - Hosts (terminated, then waited for)
  - The key pair and the local APP.pem file
  - The security group

The shared network and the quickhost user stay. Destroy is safe to run
again after a partial failure.

WARNING: This operation is irreversible. Data on the hosts is lost.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.App = args[0]
			return handlers.Destroy(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.KeyFile, "key-file", "f", "", "Private key to remove (default: ./APP.pem)")

	return cmd
}

// DestroyAll returns the destroy-all command.
func DestroyAll(g *handlers.Globals) *cobra.Command {
	var opts handlers.DestroyAllOptions

	cmd := &cobra.Command{
		Use:   "destroy-all",
		Short: "Destroy every app, the network and the quickhost user",
		Long: `Destroy-all destroys every app in the region, then the shared network,
then the quickhost IAM user, group, policies and local profile.

It needs the administrator profile used for init unless --keep-identity
is given.

WARNING: This operation is irreversible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DestroyAll(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.KeyDir, "key-dir", "", "Directory holding the APP.pem files (default: current directory)")
	cmd.Flags().BoolVar(&opts.KeepIdentity, "keep-identity", false, "Keep the quickhost user and profile")

	return cmd
}
