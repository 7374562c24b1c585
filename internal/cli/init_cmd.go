package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/config"
)

// Flag values for the init subcommand.
var (
	initFlagName        string
	initFlagProject     string
	initFlagForce       bool
	initFlagInteractive bool
)

// initCmd implements "pacer init [template]".
// It scaffolds a workspace from an embedded template without requiring an
// existing pacer.toml, so it is safe to run in a fresh directory.
var initCmd = &cobra.Command{
	Use:   "init [template]",
	Short: "Initialize a Pacer workspace from a template",
	Long: `Initialize a Pacer workspace by rendering an embedded template: a
pacer.toml and a sample plan.yaml ready for "pacer import". Existing files are
preserved unless --force is supplied. With --interactive the name, default
project and store directory are asked for in a short form.

Examples:
  pacer init                           # scaffold the starter template here
  pacer init starter --project-id web  # pick the default project ID
  pacer init -i                        # answer a few questions first
  pacer init --force                   # overwrite existing files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initFlagName, "name", "n", "", "Workspace name (defaults to current directory name)")
	initCmd.Flags().StringVar(&initFlagProject, "project-id", "", "Default project ID (defaults to the workspace name)")
	initCmd.Flags().BoolVar(&initFlagForce, "force", false, "Overwrite existing files")
	initCmd.Flags().BoolVarP(&initFlagInteractive, "interactive", "i", false, "Ask for the workspace settings interactively")
	rootCmd.AddCommand(initCmd)
}

// runInit is the RunE handler for the init command.
func runInit(cmd *cobra.Command, args []string) error {
	templateName := "starter"
	if len(args) > 0 {
		templateName = args[0]
	}

	if !config.TemplateExists(templateName) {
		available, listErr := config.ListTemplates()
		if listErr != nil {
			return fmt.Errorf("listing available templates: %w", listErr)
		}
		return fmt.Errorf("template %q not found; available templates: %s",
			templateName, strings.Join(available, ", "))
	}

	// The working directory already reflects --dir.
	destDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	answers := initAnswers{
		Name:      initFlagName,
		ProjectID: initFlagProject,
		StoreDir:  config.DefaultStoreDir,
	}
	if answers.Name == "" {
		answers.Name = filepath.Base(destDir)
	}
	if flagStoreDir != "" {
		answers.StoreDir = flagStoreDir
	}
	if initFlagInteractive {
		if err := runInitWizard(&answers, templateName); err != nil {
			if errors.Is(err, errInitCancelled) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Init cancelled; nothing was written.")
				return nil
			}
			return err
		}
	}

	projectName := answers.Name
	if strings.Contains(projectName, "../") || strings.Contains(projectName, "..\\") {
		return fmt.Errorf("invalid workspace name %q: must not contain path traversal sequences", projectName)
	}

	projectID := answers.ProjectID
	if projectID == "" {
		projectID = projectIDFromName(projectName)
	}
	if projectID == "" {
		return fmt.Errorf("cannot derive a project ID from %q; pass --project-id", projectName)
	}

	pacerToml := filepath.Join(destDir, config.ConfigFileName)
	if _, statErr := os.Stat(pacerToml); statErr == nil && !initFlagForce {
		return fmt.Errorf("%s already exists in %s; use --force to overwrite", config.ConfigFileName, destDir)
	}

	vars := config.TemplateVars{
		ProjectName:    projectName,
		StoreDir:       answers.StoreDir,
		DefaultProject: projectID,
	}

	created, err := config.RenderTemplate(templateName, destDir, vars, initFlagForce)
	if err != nil {
		return fmt.Errorf("rendering template %q: %w", templateName, err)
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "Initialized workspace %q from template %q\n\n", projectName, templateName)

	if len(created) > 0 {
		fmt.Fprintln(stderr, "Created files:")
		for _, f := range created {
			rel, relErr := filepath.Rel(destDir, f)
			if relErr != nil {
				rel = f
			}
			fmt.Fprintf(stderr, "  %s\n", rel)
		}
		fmt.Fprintln(stderr)
	}

	fmt.Fprintln(stderr, "Next steps:")
	fmt.Fprintln(stderr, "  1. Edit plan.yaml to describe your tasks and dependencies")
	fmt.Fprintln(stderr, "  2. Run: pacer import plan.yaml --recalc")
	fmt.Fprintln(stderr, "  3. Run: pacer timeline")

	return nil
}

// projectIDFromName lowercases name and keeps letters, digits, '-' and '_',
// mapping everything else to '-'.
func projectIDFromName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}
