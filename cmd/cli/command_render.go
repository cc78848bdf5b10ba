package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/espressif/esp-bist/pkg/lib/gdbscript"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		fault gdbscript.Fault
		port  int
	)
	cmd := &cobra.Command{
		Use:   "render [suite/scenario]",
		Short: "Print the debugger script for a scenario or for --breakpoint/--mutation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == 0 {
				port = a.cfg.Debugger.Port
			}
			if len(args) == 1 {
				if fault.Breakpoint != "" || len(fault.Mutations) > 0 {
					return errors.New("give either a scenario or --breakpoint/--mutation, not both")
				}
				catalog, err := a.catalog()
				if err != nil {
					return err
				}
				selected, err := catalog.Select(args[0])
				if err != nil {
					return err
				}
				if len(selected) != 1 {
					return fmt.Errorf("%q selects %d scenarios, want exactly one", args[0], len(selected))
				}
				if selected[0].Fault == nil {
					return fmt.Errorf("scenario %s injects no fault", selected[0].Ref())
				}
				fault = *selected[0].Fault
			}
			if err := fault.Validate(); err != nil {
				return err
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), fault.Script(port))
			return err
		},
	}
	cmd.Flags().StringVarP(&fault.Breakpoint, "breakpoint", "b", "", "symbol for the one-shot breakpoint")
	cmd.Flags().StringArrayVarP(&fault.Mutations, "mutation", "m", nil, "debugger command to run at the breakpoint (repeatable, kept in order)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "gdb stub port (default: debugger.port)")
	return cmd
}
