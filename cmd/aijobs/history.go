package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ReedRawlings/AIJobs/internal/model"
	"github.com/ReedRawlings/AIJobs/internal/runlog"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the ledger",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.RunDBPath == "" {
		return errors.New("run ledger is disabled (run_db_path is empty)")
	}

	store, err := runlog.New(cfg.RunDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-17s %-7s %9s %9s %9s %9s %9s %10s\n",
		"Started", "Status", "Companies", "Postings", "Appeared", "Updated", "Closed", "Duration")
	for _, r := range runs {
		fmt.Printf("%-17s %-7s %9d %9d %9d %9d %9d %10s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			r.Companies, r.Postings, r.Appeared, r.Updated, r.Closed,
			r.Duration().Round(time.Second),
		)
		if r.Status == model.RunFailed && r.Err != "" {
			fmt.Printf("    error: %s\n", r.Err)
		}
	}
	return nil
}
