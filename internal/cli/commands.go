package cli

import (
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/spf13/cobra"
)

// dutCmd groups every command that works on DUTs
var dutCmd = &cobra.Command{
	Use:   "dut",
	Short: "Discover, track and operate DUTs",
	Long: `Commands that work on DUTs.

Most take --dut, which accepts a registered id or an address:
  eve_NXAB12            registered id (model_serial)
  192.168.7.2           IPv4, default SSH port
  192.168.7.2:2222      IPv4 with port
  [fe80::1%eth0]:22     IPv6, bracketed when a port follows`,
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for dutctl.

Examples:
  # Bash
  dutctl completion bash > /etc/bash_completion.d/dutctl

  # Zsh
  dutctl completion zsh > "${fpath[1]}/_dutctl"

  # Fish
  dutctl completion fish > ~/.config/fish/completions/dutctl.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// Register all commands
	rootCmd.AddCommand(dutCmd)
	rootCmd.AddCommand(completionCmd)
}
