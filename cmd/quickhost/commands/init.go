package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/quickhost/cmd/quickhost/handlers"
)

// Init returns the init command.
func Init(g *handlers.Globals) *cobra.Command {
	var opts handlers.InitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the quickhost user and the shared network",
		Long: `Init prepares an AWS region for quickhost.

It must run with an administrator profile (--profile, or the AWS SDK
default chain) and creates:
  - The quickhost-user IAM user, the quickhost-users group and its policies
  - An access key stored as the quickhost-user profile in ~/.aws
  - A VPC with one public subnet, internet gateway and route table

Running init again repairs anything that is missing.

Example:
  quickhost init --profile admin --region eu-west-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.VPCCIDR, "vpc-cidr", "", "IPv4 range of the network, /16 to /24 (default: 172.16.0.0/16)")
	cmd.Flags().BoolVar(&opts.SkipVerify, "skip-verify", false, "Do not test the new access key")

	return cmd
}
