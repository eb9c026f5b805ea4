package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ReedRawlings/AIJobs/internal/logging"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch every enabled board once, report reachability, exit",
	Long:  "One-shot connectivity check: fetches each enabled board and reports the posting count. Nothing is reconciled or persisted.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogFormat, debug)

	logger.Info("check mode: boards are fetched, nothing is persisted")

	adapters := buildAdapters(cfg, logger)
	if len(adapters) == 0 {
		return errors.New("no companies to check")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, ad := range adapters {
		postings, err := ad.Acquire(ctx)
		if err != nil {
			logger.Error("board unreachable", "company", ad.Company(), "source", ad.Source(), "error", err)
			failed++
			continue
		}
		logger.Info("board ok", "company", ad.Company(), "source", ad.Source(), "postings", len(postings))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d boards failed", failed, len(adapters))
	}
	logger.Info("check complete")
	return nil
}
