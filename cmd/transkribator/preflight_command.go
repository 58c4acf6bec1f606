package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"transkribator/internal/preflight"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check the store, directories and external services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return errors.New("configuration unavailable")
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, result := range results {
				fmt.Fprintln(stdout, renderCheckLine(result, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d preflight checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}

func renderCheckLine(result preflight.Result, colorize bool) string {
	label, color := "OK", ansiGreen
	if !result.Passed {
		label, color = "ERROR", ansiRed
	}
	status := fmt.Sprintf("[%s]", label)
	if result.Detail != "" {
		status = fmt.Sprintf("[%s] %s", label, result.Detail)
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, result.Name+":", status)
	if colorize {
		return color + line + ansiReset
	}
	return line
}
