package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/druarnfield/otto/internal/action"
	"github.com/druarnfield/otto/internal/config"
	"github.com/druarnfield/otto/internal/engine"
	"github.com/druarnfield/otto/internal/outputrouter"
	"github.com/druarnfield/otto/internal/scheduler"
	"github.com/druarnfield/otto/internal/workspace"
)

func newRunCmd() *cobra.Command {
	var ioLimit, cpuLimit int
	var follow bool

	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Run a task set",
		Long:  "Build the task graph from otto.toml (or every task with no args) and execute it to completion.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromDir(projectDir)
			if err != nil {
				return err
			}

			requested := args
			if len(requested) == 0 {
				for _, spec := range cfg.Tasks {
					requested = append(requested, spec.Name)
				}
			}

			if ioLimit == 0 {
				ioLimit = cfg.Project.IOLimit
			}
			if cpuLimit == 0 {
				cpuLimit = cfg.Project.CPULimit
			}

			defs, err := cfg.Defs()
			if err != nil {
				return err
			}

			ts := time.Now().Unix()
			ws, err := workspace.New(projectDir, ts)
			if err != nil {
				return err
			}
			if err := ws.Init(); err != nil {
				return err
			}

			dag, err := buildDAG(defs, requested)
			if err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}

			router := outputrouter.New()
			if follow {
				ch, cancel := router.Subscribe()
				defer cancel()
				go streamLines(cmd, ch)
			}

			hostname, _ := os.Hostname()
			user := os.Getenv("USER")
			meta := &engine.RunMetadata{
				OttofilePath: cfg.Path(),
				ProjectHash:  ws.ProjectHash(),
				Timestamp:    ts,
				Cwd:          projectDir,
				User:         user,
				Hostname:     hostname,
				Argv:         os.Args,
				RunUUID:      uuid.NewString(),
			}

			if err := ws.WriteRunMetadata(meta, string(engine.RunRunning)); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: writing run metadata: %v\n", err)
			}

			var runID int64
			if st != nil {
				runID, err = st.RecordRunStart(meta)
				if err != nil {
					return fmt.Errorf("recording run start: %w", err)
				}
			}

			sched := scheduler.New(dag, ws, action.New(ws), router, st, runID, scheduler.Options{
				IOLimit:  ioLimit,
				CPULimit: cpuLimit,
				User:     user,
			})

			status, outcomes := sched.Run(context.Background())

			if err := ws.WriteRunMetadata(meta, string(status)); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: writing run metadata: %v\n", err)
			}

			if st != nil {
				if err := st.RecordRunComplete(ts, status, nil); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: recording run completion: %v\n", err)
				}
			}

			printOutcomes(cmd, requested, outcomes)

			if status != engine.RunSuccess {
				return fmt.Errorf("run failed")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&ioLimit, "io-limit", 0, "override the I/O concurrency cap (default from otto.toml)")
	cmd.Flags().IntVar(&cpuLimit, "cpu-limit", 0, "override the CPU concurrency cap (default from otto.toml)")
	cmd.Flags().BoolVar(&follow, "follow", false, "stream task output live as it runs")

	return cmd
}

func streamLines(cmd *cobra.Command, ch <-chan outputrouter.Line) {
	for line := range ch {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s/%s] %s\n", line.TaskName, line.Stream, line.Content)
	}
}

func printOutcomes(cmd *cobra.Command, order []string, outcomes map[string]scheduler.TaskOutcome) {
	w := cmd.OutOrStdout()
	for _, name := range order {
		outc, ok := outcomes[name]
		if !ok {
			fmt.Fprintf(w, "  %-24s %s\n", name, "not launched")
			continue
		}
		if outc.Err != nil {
			fmt.Fprintf(w, "  %-24s %s (%v)\n", name, outc.Status, outc.Err)
		} else {
			fmt.Fprintf(w, "  %-24s %s\n", name, outc.Status)
		}
	}
}
