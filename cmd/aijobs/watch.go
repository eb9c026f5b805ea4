package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ReedRawlings/AIJobs/internal/logging"
	"github.com/ReedRawlings/AIJobs/internal/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the tracker on an interval",
	Long:  "Runs one tracking cycle immediately, then repeats every watch_interval; blocks until SIGINT/SIGTERM.",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogFormat, debug)

	logger.Info("config loaded",
		"interval", cfg.WatchInterval.String(),
		"companies", len(cfg.EnabledCompanies()),
		"registry", cfg.RegistryPath,
	)

	p, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := func(ctx context.Context) {
		// Cycle failures are reported here and in the ledger; the
		// daemon keeps going until the next tick.
		if _, err := p.Run(ctx, time.Now().UTC()); err != nil {
			logger.Error("tracking cycle failed", "error", err)
		}
	}

	sched := scheduler.New(cfg.WatchInterval, job, logger)
	if err := sched.Run(ctx); err != nil {
		return err
	}

	logger.Info("goodbye")
	return nil
}
