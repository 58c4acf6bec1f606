package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"transkribator/internal/queue"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	var color string
	switch queue.Status(status) {
	case queue.StatusQueued:
		color = ansiBlue
	case queue.StatusInProgress:
		color = ansiYellow
	case queue.StatusCompleted:
		color = ansiGreen
	case queue.StatusFailed:
		color = ansiRed
	default:
		return status
	}
	return color + status + ansiReset
}
