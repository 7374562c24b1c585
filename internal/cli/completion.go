package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/project"
)

// completionCmd generates shell completion scripts for Pacer.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for Pacer.

To install completions:

  Bash (Linux):
    pacer completion bash | sudo tee /etc/bash_completion.d/pacer > /dev/null

  Bash (macOS with Homebrew):
    pacer completion bash > $(brew --prefix)/etc/bash_completion.d/pacer

  Zsh:
    pacer completion zsh > "${fpath[1]}/_pacer"
    # or
    pacer completion zsh > ~/.zsh/completions/_pacer

  Fish:
    pacer completion fish > ~/.config/fish/completions/pacer.fish

  PowerShell:
    pacer completion powershell > pacer.ps1
    # Then add ". pacer.ps1" to your PowerShell profile`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, out := cmd.Root(), cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, true)
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(out)
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// completeProjectIDs offers the projects in the configured store for the
// optional [project] argument.
func completeProjectIDs(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	d, err := loadRuntimeDeps(depsOptions{skipGraphCheck: true})
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer d.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ids, err := d.store.ProjectIDs(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeDocumentFormat offers the values of --format on import and export.
func completeDocumentFormat(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{string(project.FormatYAML), string(project.FormatJSON)}, cobra.ShellCompDirectiveNoFileComp
}
