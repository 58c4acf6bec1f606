package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transkribator/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return errors.New("configuration unavailable")
			}
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Notifications are not configured (set notifications.ntfy_topic)")
				return nil
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
