// Package commands implements Skippy's CLI command tree using cobra: a
// thin IPC client plus the `serve` command that runs the actual daemon.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "skippy",
		Short: "Skippy - a personal-assistant daemon",
		Long: `Skippy is a personal-assistant daemon: an LLM-backed agentic loop
reachable over chat (Discord, WhatsApp), a local control socket, and
this CLI.

Examples:
  skippy serve
  skippy prompt "what's on my calendar today"
  skippy health
  skippy config show`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSetupCmd(),
		newConfigCmd(),
		newHealthCmd(),
		newPromptCmd(),
		newMessageCmd(),
		newCompletionCmd(),
	)

	rootCmd.PersistentFlags().String("data-dir", "", "Skippy data directory (default ~/.skippy)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate a shell completion script",
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
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
		},
	}
}
