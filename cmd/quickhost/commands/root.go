// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package; this package only parses arguments and flags.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/quickhost/cmd/quickhost/handlers"
)

// Root returns the root command for the quickhost CLI.
func Root() *cobra.Command {
	g := &handlers.Globals{}

	cmd := &cobra.Command{
		Use:           "quickhost",
		Short:         "Launch throwaway hosts on AWS without writing infrastructure code",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&g.Profile, "profile", "", "AWS profile (default: quickhost-user, or the SDK default for init and destroy-all)")
	flags.StringVar(&g.Region, "region", "", "AWS region (default: us-east-1)")
	flags.StringVarP(&g.ConfigPath, "config", "c", "", "Path to a defaults file (default: ./quickhost.yaml when present)")
	flags.CountVarP(&g.Verbosity, "verbose", "v", "Increase log verbosity")
	flags.BoolVarP(&g.Yes, "yes", "y", false, "Do not ask for confirmation")

	// App lifecycle
	cmd.AddCommand(Init(g))
	cmd.AddCommand(Make(g))
	cmd.AddCommand(Describe(g))
	cmd.AddCommand(Update(g))
	cmd.AddCommand(Destroy(g))
	cmd.AddCommand(ListAll(g))
	cmd.AddCommand(DestroyAll(g))

	// Utility commands
	cmd.AddCommand(Doctor(g))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
