package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/druarnfield/otto/internal/store"
)

func newStatsCmd() *cobra.Command {
	var projects bool
	var task string
	var allTasks bool
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate run/task statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			if st == nil {
				return fmt.Errorf("stats requires the StateStore; --no-db was given")
			}
			defer st.Close()

			w := cmd.OutOrStdout()

			if projects {
				all, err := st.GetAllProjects()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%-10s %-10s %s\n", "HASH", "RUNS", "LAST SEEN")
				for _, p := range all {
					fmt.Fprintf(w, "%-10s %-10d %d\n", p.Hash, p.RunCount, p.LastSeen)
				}
				return nil
			}

			if task != "" {
				ts, err := st.GetTaskStats(task)
				if err != nil {
					return err
				}
				printTaskStats(w, ts)
				return nil
			}

			if allTasks {
				all, err := st.GetAllTaskStats(limit)
				if err != nil {
					return err
				}
				for _, ts := range all {
					printTaskStats(w, &ts)
				}
				return nil
			}

			overall, err := st.GetOverallStats()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "runs:  %d total (%d success, %d failed, %d running)\n",
				overall.TotalRuns, overall.SuccessfulRuns, overall.FailedRuns, overall.RunningRuns)
			fmt.Fprintf(w, "tasks: %d total\n", overall.TotalTasks)
			fmt.Fprintf(w, "disk:  %d bytes\n", overall.TotalDiskUsage)
			return nil
		},
	}

	cmd.Flags().BoolVar(&projects, "projects", false, "show per-project run counts instead of the overall summary")
	cmd.Flags().StringVar(&task, "task", "", "show aggregated stats for a single named task")
	cmd.Flags().BoolVar(&allTasks, "all-tasks", false, "show stats for every task ever recorded, most recently executed first")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum tasks to show with --all-tasks (0 = unbounded)")
	return cmd
}

func printTaskStats(w io.Writer, ts *store.TaskStats) {
	fmt.Fprintf(w, "task %s: %d runs (%d ok, %d failed, %d skipped)\n",
		ts.TaskName, ts.TotalExecutions, ts.SuccessfulExecutions, ts.FailedExecutions, ts.SkippedExecutions)
	if ts.AvgDurationSeconds != nil {
		fmt.Fprintf(w, "  avg %.1fs  min %.1fs  max %.1fs\n", *ts.AvgDurationSeconds, *ts.MinDurationSeconds, *ts.MaxDurationSeconds)
	}
	for _, p := range ts.ByProject {
		fmt.Fprintf(w, "  project %s: %d runs (%d ok, %d failed, %d skipped)\n",
			p.ProjectHash, p.TotalExecutions, p.SuccessfulExecutions, p.FailedExecutions, p.SkippedExecutions)
	}
}
