package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/espressif/esp-bist/pkg/lib"
	"github.com/espressif/esp-bist/pkg/lib/scenario"
)

func newRunCmd(a *app) *cobra.Command {
	var echo bool
	cmd := &cobra.Command{
		Use:   "run [suite[/scenario]]...",
		Short: "Run scenarios; all of them when none are named",
		Long: "Run scenarios from the catalog one after another. A reference is a suite name,\n" +
			"suite/scenario, or suite/pattern with shell-style wildcards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			selected, err := catalog.Select(args...)
			if err != nil {
				return err
			}

			runner := &scenario.Runner{Config: a.cfg, Logger: a.logger}
			if echo {
				w := cmd.ErrOrStderr()
				runner.Echo = func(l lib.Line) { fmt.Fprintf(w, "qemu: %s\n", l.Text) }
			}

			results := runner.RunAll(cmd.Context(), selected)
			printResults(cmd.OutOrStdout(), results)

			failed := 0
			for _, r := range results {
				if !r.Passed {
					failed++
				}
			}
			if skipped := len(selected) - len(results); skipped > 0 {
				return fmt.Errorf("interrupted, %d scenarios not run", skipped)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&echo, "echo", "e", false, "echo simulator output to stderr")
	return cmd
}
