package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/project"
	"github.com/AbdelazizMoustafa10m/Pacer/internal/propagate"
)

// importFlags holds the flag values for the import command.
type importFlags struct {
	Format string // --format, overrides the file extension
	Recalc bool   // --recalc, recalculate the project after importing
	JSON   bool   // --json for structured output
}

// importOutput is the JSON output of the import command.
type importOutput struct {
	Import *project.ImportResult `json:"import"`
	Recalc *propagate.Result     `json:"recalc,omitempty"`
}

// newImportCmd creates the "pacer import" command.
func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create or update a project from a YAML or JSON plan",
		Long: `Import a project document into the store. Tasks are matched to existing
ones by ID, then by code, and updated in place; unmatched tasks are created.
Dependencies already linking the same pair are kept as they are.

The whole document is checked first, including the dependency graph it would
produce, so a rejected import changes nothing. With --dry-run only that check
runs. Use "-" to read the document from stdin.`,
		Example: `  # Import and recalculate start dates
  pacer import plan.yaml --recalc

  # Check a plan without writing
  pacer import plan.yaml --dry-run

  # Read JSON from stdin
  cat plan.json | pacer import - --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.Format, "format", "", "Document format: yaml or json (default: from file extension)")
	_ = cmd.RegisterFlagCompletionFunc("format", completeDocumentFormat)
	cmd.Flags().BoolVar(&flags.Recalc, "recalc", false, "Recalculate the project after importing")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output structured JSON to stdout")

	return cmd
}

func init() {
	rootCmd.AddCommand(newImportCmd())
}

func runImport(cmd *cobra.Command, path string, flags importFlags) error {
	doc, err := readDocument(cmd.InOrStdin(), path, flags.Format)
	if err != nil {
		return err
	}

	if flagDryRun {
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("invalid project document: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Document for project %s is valid: %d task(s), %d dependenc(ies)\n",
			doc.Project, len(doc.Tasks), len(doc.Dependencies))
		return nil
	}

	d, err := loadRuntimeDeps(depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	out := importOutput{}
	out.Import, err = d.importer.Import(ctx, doc)
	if err != nil {
		return err
	}
	if flags.Recalc {
		out.Recalc, err = d.scheduler.RecalculateProject(ctx, doc.Project)
		if err != nil {
			return fmt.Errorf("recalculating project %s: %w", doc.Project, err)
		}
	}

	if flags.JSON {
		return writeJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.ErrOrStderr()
	res := out.Import
	fmt.Fprintf(w, "Imported project %s: %d created, %d updated, %d dependenc(ies) added, %d kept\n",
		res.ProjectID, len(res.Created), len(res.Updated), res.EdgesAdded, res.EdgesKept)
	if out.Recalc != nil {
		renderResult(w, out.Recalc)
	}
	return nil
}

// readDocument loads a project document from path, or from stdin when path
// is "-". format overrides the extension-based choice.
func readDocument(stdin io.Reader, path, format string) (*project.Document, error) {
	if path != "-" && format == "" {
		return project.Load(path)
	}

	f, err := project.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	r := stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading project document: %w", err)
		}
		defer file.Close()
		r = file
	}
	doc, err := project.Decode(r, f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return doc, nil
}
