package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	episodesCmd := &cobra.Command{
		Use:   "episodes",
		Short: "Inspect the published episode catalog",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List published episodes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			episodes, err := ctx.client().Episodes(cmd.Context())
			if err != nil {
				return err
			}
			if len(episodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No episodes published yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderEpisodeTable(episodes))
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an episode and rebuild the feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().DeleteEpisode(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted episode %s.\n", args[0])
			return nil
		},
	}

	episodesCmd.AddCommand(listCmd)
	episodesCmd.AddCommand(deleteCmd)
	return episodesCmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
