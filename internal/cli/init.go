package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/druarnfield/otto/internal/scaffold"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new otto project",
		Long:  "Create otto.toml and a sample task script in --project-dir.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scaffold.Create(projectDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created otto.toml in %s\n", projectDir)
			fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
			fmt.Fprintln(cmd.OutOrStdout(), "  1. Edit otto.toml to declare your tasks")
			fmt.Fprintln(cmd.OutOrStdout(), "  2. Run `otto graph` to visualize the task DAG")
			fmt.Fprintln(cmd.OutOrStdout(), "  3. Run `otto run` to execute it")
			return nil
		},
	}
}
