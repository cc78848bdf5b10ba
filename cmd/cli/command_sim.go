package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/espressif/esp-bist/pkg/lib/simulator"
)

func newSimCmd(a *app) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "sim <test-dir>",
		Short: "Boot a test directory's firmware and stream its console until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := simulator.Start(ctx, a.cfg.TestDir(args[0]), debug, simulator.Options{
				Config: a.cfg,
				Logger: a.logger,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := s.Stop(); err != nil {
					a.logger.Warn("Simulator teardown", "error", err)
				}
			}()
			if debug {
				a.logger.Info("Simulator halted, attach a debugger", "port", a.cfg.Debugger.Port)
			}

			w := cmd.OutOrStdout()
			for line := range s.Subscribe(ctx, 256) {
				if _, err := fmt.Fprintln(w, line.Text); err != nil {
					return err
				}
			}
			if ctx.Err() != nil {
				return nil
			}
			<-s.Exited()
			if st := s.Status(); st.ExitCode != nil && *st.ExitCode != 0 {
				return fmt.Errorf("simulator exited with code %d", *st.ExitCode)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "hold the CPU at reset with the gdb stub open")
	return cmd
}
