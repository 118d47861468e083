package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/quickhost/cmd/quickhost/handlers"
)

// Make returns the make command.
func Make(g *handlers.Globals) *cobra.Command {
	var opts handlers.MakeOptions

	cmd := &cobra.Command{
		Use:   "make APP",
		Short: "Launch hosts for an app",
		Long: `Make launches one batch of hosts for APP inside the quickhost network.

It creates a key pair (saved as APP.pem), a security group allowing the
given ports from the given CIDRs and from your current public IP, and
waits until every host is running.

An app has at most one batch of hosts. Destroy it before making new ones.

Example:
  quickhost make web --host-count 2 --port 22 --port 80 --cidr 10.0.0.0/8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.App = args[0]
			return handlers.Make(cmd.Context(), *g, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.HostCount, "host-count", "n", 0, "Number of hosts (default: 1)")
	f.StringVarP(&opts.InstanceType, "instance-type", "t", "", "EC2 instance type (default: t2.micro)")
	f.StringVar(&opts.OS, "os", "", "Operating system: amazon-linux-2, ubuntu, windows, windows-core (default: amazon-linux-2)")
	f.Int32SliceVarP(&opts.Ports, "port", "p", nil, "TCP port to open, repeatable; replaces the OS default (22, or 3389 on Windows)")
	f.StringSliceVar(&opts.CIDRs, "cidr", nil, "Extra CIDR allowed to connect, repeatable; a bare IP means /32")
	f.StringVarP(&opts.UserData, "userdata", "u", "", "File passed to the hosts as user data")
	f.StringVarP(&opts.KeyFile, "key-file", "f", "", "Where to save the private key (default: ./APP.pem)")
	f.Int32Var(&opts.DiskSize, "disk-size", 0, "Root volume size in GiB (default: the image size)")
	f.BoolVar(&opts.WaitForPort, "wait-for-port", false, "Wait until every host accepts connections on the first port")

	return cmd
}
