package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/druarnfield/otto/internal/cleanup"
	"github.com/druarnfield/otto/internal/store"
	"github.com/druarnfield/otto/internal/workspace"
)

func newCleanCmd() *cobra.Command {
	var keepLast, keepDays, keepFailedDays int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete runs older than the retention policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; scanning run directories instead\n", err)
				st = nil
			}
			if st != nil {
				defer st.Close()
			}

			ws, err := workspace.New(projectDir, 0)
			if err != nil {
				return err
			}

			policy := store.RetentionPolicy{KeepLast: keepLast, KeepDays: keepDays, ProjectFilter: ws.ProjectHash()}
			if keepFailedDays > 0 {
				policy.KeepFailedDays = &keepFailedDays
			}

			eng := cleanup.New(st, ws.ProjectDir())
			results, err := eng.Sweep(policy, time.Now().Unix(), dryRun)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			var freed int64
			for _, r := range results {
				freed += r.FreedBytes
				verb := "deleted"
				if !r.Deleted {
					verb = "would delete"
				}
				fmt.Fprintf(w, "%s run %d (%d bytes)\n", verb, r.Timestamp, r.FreedBytes)
			}
			fmt.Fprintf(w, "%d run(s), %d bytes freed\n", len(results), freed)
			return nil
		},
	}

	cmd.Flags().IntVar(&keepLast, "keep-last", 10, "always keep this many most-recent runs")
	cmd.Flags().IntVar(&keepDays, "keep-days", 30, "delete non-exempt runs older than this many days")
	cmd.Flags().IntVar(&keepFailedDays, "keep-failed-days", 0, "retention window for failed runs (0 = use keep-days)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list eligible runs without deleting them")
	return cmd
}
