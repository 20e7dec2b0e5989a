package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for readbreak.

To load completions:

Bash:
  $ source <(readbreak completion bash)
  # To load permanently:
  $ readbreak completion bash > /etc/bash_completion.d/readbreak

Zsh:
  $ readbreak completion zsh > "${fpath[1]}/_readbreak"
  $ compinit

Fish:
  $ readbreak completion fish | source
  # To load permanently:
  $ readbreak completion fish > ~/.config/fish/completions/readbreak.fish

PowerShell:
  PS> readbreak completion powershell | Out-String | Invoke-Expression
  # To load permanently, add to your PowerShell profile
`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := stdout(cmd)
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(w)
		case "zsh":
			return rootCmd.GenZshCompletion(w)
		case "fish":
			return rootCmd.GenFishCompletion(w, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(w)
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
