package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/druarnfield/otto/internal/store"
	"github.com/druarnfield/otto/internal/workspace"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	var allProjects bool
	var status string

	cmd := &cobra.Command{
		Use:   "history [task]",
		Short: "Show recent run (or task) history",
		Long:  "List recent runs for the current project, or the named task's execution history across runs.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			if st == nil {
				return fmt.Errorf("history requires the StateStore; --no-db was given")
			}
			defer st.Close()

			w := cmd.OutOrStdout()

			if len(args) == 1 {
				tasks, err := st.GetTaskHistory(args[0], limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%-6s %-10s %-20s %-10s\n", "ID", "STATUS", "STARTED", "DURATION")
				for _, t := range tasks {
					fmt.Fprintf(w, "%-6d %-10s %-20s %-10s\n", t.ID, t.Status, formatUnix(t.StartedAt), formatSeconds(t.DurationSeconds))
				}
				return nil
			}

			hash := ""
			if !allProjects {
				ws, err := workspace.New(projectDir, 0)
				if err == nil {
					hash = ws.ProjectHash()
				}
			}

			var runs []store.RunRecord
			if status != "" {
				runs, err = st.GetRunsWithFilters(status, hash, limit)
			} else {
				runs, err = st.GetRecentRuns(limit, hash)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%-12s %-10s %-20s %-10s\n", "TIMESTAMP", "STATUS", "STARTED", "DURATION")
			for _, r := range runs {
				fmt.Fprintf(w, "%-12d %-10s %-20s %-10s\n", r.Timestamp, r.Status, time.Unix(r.Timestamp, 0).Format(time.RFC3339), formatSeconds(r.DurationSeconds))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to show")
	cmd.Flags().BoolVar(&allProjects, "all-projects", false, "show runs from every project, not just the current one")
	cmd.Flags().StringVar(&status, "status", "", "filter runs by status (running, success, failed)")
	cmd.AddCommand(newHistoryExportCmd(), newHistoryImportCmd())
	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	var recipient, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Back up the run history database",
		Long:  "Copy the StateStore database to --out, optionally encrypting it to an age X25519 --recipient.",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := resolveDBPath()
			if err != nil {
				return err
			}
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			if err := store.Export(src, out, recipient); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", src, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&recipient, "recipient", "", "age X25519 recipient (age1...) to encrypt the export to")
	cmd.Flags().StringVar(&out, "out", "", "destination path for the exported database")
	return cmd
}

func newHistoryImportCmd() *cobra.Command {
	var identity, in string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore a run history database",
		Long:  "Decrypt (if --identity is given) and copy --in into the StateStore database path.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := resolveDBPath()
			if err != nil {
				return err
			}
			if in == "" {
				return fmt.Errorf("--in is required")
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
			}
			if err := store.Import(in, dst, identity); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s to %s\n", in, dst)
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "age X25519 identity (AGE-SECRET-KEY-1...) to decrypt the import with")
	cmd.Flags().StringVar(&in, "in", "", "source path of a previously exported database")
	return cmd
}

func formatUnix(ts *int64) string {
	if ts == nil {
		return "-"
	}
	return time.Unix(*ts, 0).Format(time.RFC3339)
}

func formatSeconds(d *float64) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fs", *d)
}
