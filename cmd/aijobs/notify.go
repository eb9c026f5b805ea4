package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ReedRawlings/AIJobs/internal/logging"
	"github.com/ReedRawlings/AIJobs/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a fabricated run summary through the configured notifier.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogFormat, debug)

	n := setupNotifier(cfg, logger)
	if err := notify.SendTestMessage(context.Background(), n); err != nil {
		return fmt.Errorf("test notification: %w", err)
	}
	logger.Info("test notification sent successfully")
	return nil
}
