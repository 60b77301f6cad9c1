package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"briefcast/internal/apiclient"
	"briefcast/internal/queue"
	"briefcast/internal/status"
)

func newTableWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

// colorizeState colors job and series states when stdout is a terminal;
// piped output stays plain.
func colorizeState(state string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return state
	}
	switch state {
	case string(queue.StatusDone):
		return text.FgGreen.Sprint(state)
	case string(queue.StatusError), string(queue.SeriesFailed), "cleared":
		return text.FgRed.Sprint(state)
	case string(queue.StatusRunning), string(queue.SeriesInProgress):
		return text.FgCyan.Sprint(state)
	default:
		return state
	}
}

func renderJobTable(views []status.JobView) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"ID", "Kind", "Status", "Detail", "Created"})
	for _, view := range views {
		detail := view.Progress
		if view.Error != "" {
			detail = view.Error
		}
		tw.AppendRow(table.Row{
			shortID(view.ID),
			view.Kind,
			colorizeState(string(view.Status)),
			detail,
			view.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return tw.Render()
}

func renderSeriesTable(views []status.SeriesView) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Episodes"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
	for _, view := range views {
		produced := 0
		for _, ep := range view.Episodes {
			if ep.JobID != "" {
				produced++
			}
		}
		tw.AppendRow(table.Row{
			shortID(view.ID),
			view.Title,
			colorizeState(string(view.Status)),
			fmt.Sprintf("%d/%d", produced, len(view.Episodes)),
		})
	}
	return tw.Render()
}

func renderSeriesSteps(view *status.SeriesView) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"#", "Title", "State", "Detail"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	for _, ep := range view.Episodes {
		state := string(ep.Status)
		switch {
		case ep.Stale:
			state = "cleared"
		case ep.JobID == "":
			state = "pending"
		}
		detail := ep.Progress
		if ep.Error != "" {
			detail = ep.Error
		}
		tw.AppendRow(table.Row{ep.Step, ep.Title, colorizeState(state), detail})
	}
	return tw.Render()
}

func renderEpisodeTable(episodes []apiclient.Episode) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"ID", "Title", "Depth", "Size", "Published"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
	for _, ep := range episodes {
		title := ep.Title
		if ep.IsTrailer {
			title += " (trailer)"
		}
		tw.AppendRow(table.Row{
			shortID(ep.ID),
			title,
			ep.Depth,
			formatBytes(ep.FileSize),
			ep.Published.Local().Format(time.DateOnly),
		})
	}
	return tw.Render()
}
