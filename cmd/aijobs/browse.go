package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ReedRawlings/AIJobs/internal/browse"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the tracked registry interactively (TUI)",
	Long:  "Shows the company picker, then a split list/detail view over the persisted registry. Read-only, no network.",
	RunE:  runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return browse.Run(cfg.RegistryPath)
}
