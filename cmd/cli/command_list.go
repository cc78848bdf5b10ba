package main

import (
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [suite[/scenario]]...",
		Short: "List catalog scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			selected, err := catalog.Select(args...)
			if err != nil {
				return err
			}
			printScenarios(cmd.OutOrStdout(), selected)
			return nil
		},
	}
}
