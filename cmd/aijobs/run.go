package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ReedRawlings/AIJobs/internal/logging"
)

var runDate string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll every enabled board once and reconcile",
	Long:  "One tracking cycle: fetch all enabled boards, diff against the registry, write the dated artifacts, exit.",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "date stamp for the artifacts (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogFormat, debug)

	day := time.Now().UTC()
	if runDate != "" {
		day, err = time.Parse("2006-01-02", runDate)
		if err != nil {
			return fmt.Errorf("parse --date %q: %w", runDate, err)
		}
	}

	p, cleanup, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err = p.Run(ctx, day)
	return err
}
