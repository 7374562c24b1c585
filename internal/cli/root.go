// Package cli implements the pacer command tree on cobra.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Pacer/internal/logging"
)

// Global flag values accessible to all subcommands.
var (
	flagVerbose  bool
	flagQuiet    bool
	flagConfig   string
	flagDir      string
	flagDryRun   bool
	flagNoColor  bool
	flagStoreDir string
	flagProject  string
)

// rootCmd is the base command for Pacer.
var rootCmd = &cobra.Command{
	Use:   "pacer",
	Short: "Task dependency graph and schedule propagation",
	Long: `Pacer keeps a project's task schedule consistent with its dependency
graph. Tasks depend on other tasks; when a predecessor moves or grows, every
dependent task is pushed later so it never starts before its predecessors
allow.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupGlobals,
}

// setupGlobals applies environment fallbacks for the global flags, then
// configures logging, colour, and the working directory.
func setupGlobals(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()
	if !flags.Changed("verbose") && os.Getenv("PACER_VERBOSE") != "" {
		flagVerbose = true
	}
	if !flags.Changed("quiet") && os.Getenv("PACER_QUIET") != "" {
		flagQuiet = true
	}
	if !flags.Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv("PACER_NO_COLOR") != "") {
		flagNoColor = true
	}

	if err := logging.Setup(logging.Options{
		Verbose: flagVerbose,
		Quiet:   flagQuiet,
		JSON:    os.Getenv("PACER_LOG_FORMAT") == "json",
		Level:   os.Getenv("PACER_LOG_LEVEL"),
	}); err != nil {
		logging.New(logging.ComponentCLI).Warn("ignoring PACER_LOG_LEVEL", "error", err)
	}

	if flagNoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	if flagDir != "" {
		if err := os.Chdir(flagDir); err != nil {
			return fmt.Errorf("changing directory to %s: %w", flagDir, err)
		}
	}
	return nil
}

// registerGlobalFlags declares the persistent flags on cmd. When bind is
// true the flags write into the package-level variables.
func registerGlobalFlags(cmd *cobra.Command, bind bool) {
	pf := cmd.PersistentFlags()
	if !bind {
		pf.BoolP("verbose", "v", false, "Enable verbose (debug) output (env: PACER_VERBOSE)")
		pf.BoolP("quiet", "q", false, "Suppress all output except errors (env: PACER_QUIET)")
		pf.String("config", "", "Path to pacer.toml config file")
		pf.String("dir", "", "Override working directory")
		pf.Bool("dry-run", false, "Show what would change without writing")
		pf.Bool("no-color", false, "Disable colored output (env: PACER_NO_COLOR, NO_COLOR)")
		pf.String("store-dir", "", "Directory holding project documents (env: PACER_STORE_DIR)")
		pf.StringP("project", "p", "", "Project ID for commands that take one (env: PACER_PROJECT)")
		return
	}
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: PACER_VERBOSE)")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: PACER_QUIET)")
	pf.StringVar(&flagConfig, "config", "", "Path to pacer.toml config file")
	pf.StringVar(&flagDir, "dir", "", "Override working directory")
	pf.BoolVar(&flagDryRun, "dry-run", false, "Show what would change without writing")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colored output (env: PACER_NO_COLOR, NO_COLOR)")
	pf.StringVar(&flagStoreDir, "store-dir", "", "Directory holding project documents (env: PACER_STORE_DIR)")
	pf.StringVarP(&flagProject, "project", "p", "", "Project ID for commands that take one (env: PACER_PROJECT)")
}

func init() {
	registerGlobalFlags(rootCmd, true)
}

// Execute runs the root command and returns the exit code. An interrupt
// cancels the command's context so long recalculations stop between tasks.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		return 1
	}
	return 0
}

// NewRootCmd returns a new instance of the root command for use in external
// tools such as the shell completion generator and man page generator. The
// fresh command carries the same persistent flags, bound to local values, and
// every registered subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               rootCmd.Use,
		Short:             rootCmd.Short,
		Long:              rootCmd.Long,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rootCmd.PersistentPreRunE,
	}
	registerGlobalFlags(cmd, false)

	for _, child := range rootCmd.Commands() {
		cmd.AddCommand(child)
	}
	return cmd
}
