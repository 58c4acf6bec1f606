package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"transkribator/internal/api"
	"transkribator/internal/queue"
)

func buildStatsRows(stats api.JobStatsResponse) [][]string {
	rows := make([][]string, 0, len(stats.Stats)+1)
	for _, status := range queue.AllStatuses() {
		rows = append(rows, []string{string(status), strconv.Itoa(stats.Stats[string(status)])})
	}
	rows = append(rows, []string{"total", strconv.Itoa(stats.Total)})
	return rows
}

func buildListRows(items []api.JobItem, colorize bool) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.JobType,
			colorStatus(item.Status, colorize),
			fmt.Sprintf("%d%%", item.Progress),
			strconv.Itoa(item.Attempts),
			dash(item.LockedBy),
			formatDisplayTime(item.CreatedAt),
		})
	}
	return rows
}

func printJob(cmd *cobra.Command, item api.JobItem) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Job %d\n", item.ID)
	fmt.Fprintf(out, "  %-15s %s\n", "Type:", item.JobType)
	fmt.Fprintf(out, "  %-15s %s\n", "Status:", colorStatus(item.Status, colorize))
	fmt.Fprintf(out, "  %-15s %d%%\n", "Progress:", item.Progress)
	fmt.Fprintf(out, "  %-15s %d\n", "User:", item.UserID)
	if item.NoteID != nil {
		fmt.Fprintf(out, "  %-15s %d\n", "Note:", *item.NoteID)
	}
	fmt.Fprintf(out, "  %-15s %d\n", "Attempts:", item.Attempts)
	fmt.Fprintf(out, "  %-15s %s\n", "Worker:", dash(item.LockedBy))
	fmt.Fprintf(out, "  %-15s %s\n", "Heartbeat:", formatDisplayTime(item.LockedAt))
	fmt.Fprintf(out, "  %-15s %s\n", "Reclaimed:", yesNo(item.ReclaimedFrom != ""))
	if item.ReclaimedFrom != "" {
		fmt.Fprintf(out, "  %-15s %s\n", "Previous worker:", item.ReclaimedFrom)
	}
	fmt.Fprintf(out, "  %-15s %s\n", "Created:", formatDisplayTime(item.CreatedAt))
	fmt.Fprintf(out, "  %-15s %s\n", "Started:", formatDisplayTime(item.StartedAt))
	fmt.Fprintf(out, "  %-15s %s\n", "Finished:", formatDisplayTime(item.FinishedAt))
	if len(item.Payload) > 0 {
		fmt.Fprintf(out, "  %-15s %s\n", "Payload:", string(item.Payload))
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:\n%s\n", item.ErrorMessage)
	}
}

func formatDisplayTime(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
