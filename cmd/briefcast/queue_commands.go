package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"briefcast/internal/apiclient"
	"briefcast/internal/status"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var depth string
	var brief string
	var trailer bool

	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Queue an episode for a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Enqueue(cmd.Context(), apiclient.EnqueueRequest{
				Kind:    "episode",
				Topic:   args[0],
				Depth:   depth,
				Brief:   brief,
				Trailer: trailer,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s)\n", resp.JobID, resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&depth, "depth", "", "Production depth (executive, standard, deep)")
	cmd.Flags().StringVar(&brief, "brief", "", "Extra production notes for the script")
	cmd.Flags().BoolVar(&trailer, "trailer", false, "Mark the episode as a series trailer in the catalog")
	return cmd
}

func newChatCommand(ctx *commandContext) *cobra.Command {
	var depth string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Queue an episode from a free-text message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Enqueue(cmd.Context(), apiclient.EnqueueRequest{
				Kind:    "chat",
				Message: args[0],
				Depth:   depth,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s)\n", resp.JobID, resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&depth, "depth", "", "Production depth (executive, standard, deep)")
	return cmd
}

func newJobCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := ctx.client().Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:      %s\n", view.ID)
			fmt.Fprintf(out, "Kind:     %s\n", view.Kind)
			fmt.Fprintf(out, "Status:   %s\n", view.Status)
			if view.Progress != "" {
				fmt.Fprintf(out, "Progress: %s\n", view.Progress)
			}
			if view.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", view.Error)
			}
			if view.SeriesID != "" {
				fmt.Fprintf(out, "Series:   %s\n", view.SeriesID)
			}
			if len(view.Result) > 0 {
				fmt.Fprintf(out, "Result:   %s\n", string(view.Result))
			}
			return nil
		},
	}
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	var all bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			var (
				views []status.JobView
				err   error
			)
			if all {
				views, err = client.Jobs(cmd.Context())
			} else {
				views, err = client.Queue(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobTable(views))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&all, "all", false, "Include finished jobs")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queued and errored jobs (running and done jobs are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := ctx.client().ClearQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs.\n", removed)
			return nil
		},
	}

	queueCmd.AddCommand(listCmd)
	queueCmd.AddCommand(clearCmd)
	return queueCmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
