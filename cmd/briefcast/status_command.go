package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and production cap usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := ctx.client().GetHealth(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			running := "no"
			if health.Running {
				running = "yes"
			}
			fmt.Fprintf(out, "Daemon running: %s\n", running)
			fmt.Fprintf(out, "Jobs: %d total (%d queued, %d running, %d done, %d errored)\n",
				health.Queue.Total,
				health.Queue.Queued,
				health.Queue.Running,
				health.Queue.Done,
				health.Queue.Errored,
			)
			if health.Cap.Cap > 0 {
				fmt.Fprintf(out, "Production cap: %d/%d used in the last %d days\n",
					health.Cap.Used, health.Cap.Cap, health.Cap.Window)
			} else {
				fmt.Fprintln(out, "Production cap: disabled")
			}
			return nil
		},
	}
}
