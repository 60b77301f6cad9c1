package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"briefcast/internal/apiclient"
)

func newSeriesCommand(ctx *commandContext) *cobra.Command {
	seriesCmd := &cobra.Command{
		Use:   "series",
		Short: "Create and inspect episode series",
	}

	var episodes int
	createCmd := &cobra.Command{
		Use:   "create <prompt>",
		Short: "Create a series from a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().CreateSeries(cmd.Context(), apiclient.CreateSeriesRequest{
				Prompt:   args[0],
				Episodes: episodes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created series %s: %q (%d episodes)\n", resp.SeriesID, resp.Title, resp.Episodes)
			return nil
		},
	}
	createCmd.Flags().IntVarP(&episodes, "episodes", "n", 0, "Number of episodes in the series")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List series",
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := ctx.client().ListSeries(cmd.Context())
			if err != nil {
				return err
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No series yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSeriesTable(views))
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a series and its episode jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := ctx.client().Series(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Series: %s\n", view.Title)
			fmt.Fprintf(out, "Status: %s\n", view.Status)
			if view.Error != "" {
				fmt.Fprintf(out, "Error:  %s\n", view.Error)
			}
			fmt.Fprintln(out, renderSeriesSteps(view))
			return nil
		},
	}

	seriesCmd.AddCommand(createCmd)
	seriesCmd.AddCommand(listCmd)
	seriesCmd.AddCommand(showCmd)
	return seriesCmd
}
