package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/druarnfield/otto/internal/config"
	"github.com/druarnfield/otto/internal/graph"
)

// buildDAG builds the task DAG for requested (or every declared task if
// requested is empty), shared by `run` and `graph`.
func buildDAG(defs map[string]*graph.Def, requested []string) (*graph.DAG, error) {
	if len(requested) == 0 {
		for name := range defs {
			requested = append(requested, name)
		}
	}
	return graph.Build(defs, requested)
}

func newGraphCmd() *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "graph [task...]",
		Short: "Visualize the task graph",
		Long:  "Render the task DAG as ASCII (default) or Graphviz DOT (--dot).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromDir(projectDir)
			if err != nil {
				return err
			}
			defs, err := cfg.Defs()
			if err != nil {
				return err
			}
			dag, err := buildDAG(defs, args)
			if err != nil {
				return err
			}

			if dot {
				fmt.Fprintln(cmd.OutOrStdout(), dag.DOT())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), dag.ASCII())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "render as Graphviz DOT instead of ASCII")
	return cmd
}
