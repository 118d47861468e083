package commands

import "github.com/spf13/cobra"

// Completion returns the completion command for shell autocompletion.
func Completion() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for quickhost.

To load completions:

Bash:
  $ source <(quickhost completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ quickhost completion bash > /etc/bash_completion.d/quickhost
  # macOS:
  $ quickhost completion bash > $(brew --prefix)/etc/bash_completion.d/quickhost

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ quickhost completion zsh > "${fpath[1]}/_quickhost"
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ quickhost completion fish | source
  # To load completions for each session, execute once:
  $ quickhost completion fish > ~/.config/fish/completions/quickhost.fish

PowerShell:
  PS> quickhost completion powershell | Out-String | Invoke-Expression
  # To load completions for every new session, run:
  PS> quickhost completion powershell > quickhost.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
			return nil
		},
	}
	return cmd
}
