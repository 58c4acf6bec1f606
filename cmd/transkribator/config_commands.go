package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"transkribator/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set store.url (or export DATABASE_URL) and the Telegram and transcription credentials before running the worker.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store:           %s\n", storeKind(cfg))
			fmt.Fprintf(out, "Worker id:       %s\n", cfg.Worker.ID)
			fmt.Fprintf(out, "Telegram:        %s\n", yesNo(strings.TrimSpace(cfg.Telegram.BotToken) != ""))
			fmt.Fprintf(out, "Transcription:   %s\n", yesNo(strings.TrimSpace(cfg.Transcription.APIKey) != ""))
			fmt.Fprintf(out, "Status cache:    %s\n", yesNo(strings.TrimSpace(cfg.StatusCache.RedisURL) != ""))
			fmt.Fprintf(out, "Plan reminders:  %s\n", yesNo(cfg.Reminders.Enabled))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func storeKind(cfg *config.Config) string {
	if cfg.IsPostgres() {
		return "postgres"
	}
	return "sqlite (" + cfg.Store.URL + ")"
}
