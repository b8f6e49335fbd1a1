// Package cli wraps otto's core (workspace, graph, scheduler, store,
// cleanup) in a thin cobra command surface for manual/scripted use.
// Each subcommand parses flags, calls straight into the core, and
// prints; no business logic lives here.
//
// Grounded on pit's internal/cli/root.go (PersistentPreRunE shared
// setup, package-level flag vars, one-file-per-subcommand layout).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	projectDir string
	noDB       bool
	dbPath     string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "otto",
		Short: "Project-local task runner",
		Long:  "Otto runs a project's task graph with mtime-based skip caching, class-capped concurrency, and durable run history.",
	}

	root.PersistentFlags().StringVar(&projectDir, "project-dir", ".", "root project directory (containing otto.toml)")
	root.PersistentFlags().BoolVar(&noDB, "no-db", false, "skip the StateStore; fall back to filesystem-only behavior")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "override the StateStore path (default ~/.otto/otto.db)")

	root.AddCommand(
		newInitCmd(),
		newRunCmd(),
		newGraphCmd(),
		newHistoryCmd(),
		newStatsCmd(),
		newCleanCmd(),
	)

	return root
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
