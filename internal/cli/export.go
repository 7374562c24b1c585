package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/project"
)

// exportFlags holds the flag values for the export command.
type exportFlags struct {
	Format string // --format yaml|json
	Output string // --output <file>, stdout when empty
}

// newExportCmd creates the "pacer export" command.
func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export [project]",
		Short: "Write a project as a YAML or JSON plan",
		Long: `Export a project's tasks and dependencies as a document that
"pacer import" accepts. Tasks keep their IDs, so importing the export updates
the same tasks.`,
		Example: `  # Print the default project as YAML
  pacer export

  # Save a project as JSON
  pacer export web --format json --output web.json`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjectIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Format, "format", "", "Document format: yaml or json (default: from --output extension, else yaml)")
	_ = cmd.RegisterFlagCompletionFunc("format", completeDocumentFormat)
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}

func init() {
	rootCmd.AddCommand(newExportCmd())
}

func runExport(cmd *cobra.Command, args []string, flags exportFlags) error {
	format := project.FormatYAML
	switch {
	case flags.Format != "":
		f, err := project.ParseFormat(flags.Format)
		if err != nil {
			return err
		}
		format = f
	case flags.Output != "":
		format = project.FormatFromPath(flags.Output)
	}

	d, err := loadRuntimeDeps(depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	projectID, err := d.projectID(args)
	if err != nil {
		return err
	}
	doc, err := project.Export(cmd.Context(), d.store, projectID)
	if err != nil {
		return err
	}
	if len(doc.Tasks) == 0 {
		return fmt.Errorf("project %s has no tasks", projectID)
	}

	var w io.Writer = cmd.OutOrStdout()
	if flags.Output != "" {
		f, err := os.Create(flags.Output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", flags.Output, err)
		}
		defer f.Close()
		w = f
	}
	if err := project.Encode(w, doc, format); err != nil {
		return fmt.Errorf("encoding project %s: %w", projectID, err)
	}
	if flags.Output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported project %s (%d task(s)) to %s\n", projectID, len(doc.Tasks), flags.Output)
	}
	return nil
}
