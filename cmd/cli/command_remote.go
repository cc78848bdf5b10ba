package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"

	apiv1 "github.com/espressif/esp-bist/api/v1"
)

func newRemoteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Run scenarios on a harness server (mTLS from the [remote] config or BIST_* environment)",
	}
	cmd.AddCommand(newRemoteRunCmd(a))
	cmd.AddCommand(newRemoteGetCmd(a))
	return cmd
}

func newRemoteRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <suite/scenario>",
		Short: "Run one scenario on the server and print its record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeouts.Scenario+15*time.Second)
			defer cancel()

			conn, err := dial(a.cfg.Remote)
			if err != nil {
				return err
			}
			defer conn.Close()

			client := apiv1.NewHarnessServiceClient(conn)
			run, err := client.RunScenario(ctx, &apiv1.RunScenarioRequest{Scenario: args[0]})
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			if !run.Passed {
				return fmt.Errorf("scenario %s failed", run.Scenario)
			}
			return nil
		},
	}
}

func newRemoteGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <run_id>",
		Short: "Show a run started earlier by this client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			conn, err := dial(a.cfg.Remote)
			if err != nil {
				return err
			}
			defer conn.Close()

			client := apiv1.NewHarnessServiceClient(conn)
			run, err := client.GetRun(ctx, &apiv1.GetRunRequest{RunID: args[0]})
			if err != nil {
				if grpcCode(err) == codes.PermissionDenied {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Forbidden. Only the client that started the run can read it.")
					return nil
				}
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
}
