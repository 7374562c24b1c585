// Package logging provides Pacer's logging infrastructure built on charmbracelet/log.
//
// All log output goes to stderr; stdout is reserved for command output such as
// timelines and exported project documents.
//
// Usage:
//
//	// During CLI initialization (PersistentPreRunE):
//	logging.Setup(logging.Options{Verbose: verbose})
//
//	// When wiring a component:
//	engine := propagate.NewEngine(store, propagate.WithLogger(logging.New(logging.ComponentPropagate)))
//
// Setup must be called before New. charmbracelet/log copies the default
// logger's state into each child at creation time.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Level aliases for charmbracelet/log levels.
// Re-exported so consumers do not need to import charmbracelet/log directly.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
	LevelFatal = log.FatalLevel
)

// Component prefixes used across Pacer.
const (
	ComponentCLI       = "cli"
	ComponentStore     = "store"
	ComponentGraph     = "graph"
	ComponentPropagate = "propagate"
	ComponentSchedule  = "schedule"
	ComponentProject   = "project"
)

// Options controls the global logger.
type Options struct {
	// Verbose lowers the level to Debug.
	Verbose bool
	// Quiet raises the level to Error. It wins over Verbose and Level.
	Quiet bool
	// JSON switches to the NDJSON formatter.
	JSON bool
	// Level is an explicit level name ("debug", "info", "warn", "error").
	// Verbose wins over it.
	Level string
}

// Setup configures the global logging defaults. Call once during CLI
// initialization. An unknown Level is reported and leaves the level at Info.
func Setup(opts Options) error {
	level := log.InfoLevel
	var levelErr error
	if name := strings.TrimSpace(opts.Level); name != "" {
		parsed, err := log.ParseLevel(strings.ToLower(name))
		if err != nil {
			levelErr = fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		} else {
			level = parsed
		}
	}
	if opts.Verbose {
		level = log.DebugLevel
	}
	if opts.Quiet {
		level = log.ErrorLevel
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if opts.JSON {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}
	return levelErr
}

// New creates a logger with the given component prefix. An empty component
// produces a logger without a prefix.
//
//	logger := logging.New(logging.ComponentStore)
//	logger.Info("loaded project", "project", "q3")
//	// Output: INFO <store> loaded project project=q3
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// Discard returns a logger that drops everything. Library callers that do
// not want Pacer's diagnostics can pass it where a logger is required.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// SetOutput overrides the output writer for the default logger. Tests use it
// with a bytes.Buffer and restore the original output in t.Cleanup.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
