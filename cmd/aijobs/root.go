package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ReedRawlings/AIJobs/internal/adapter"
	"github.com/ReedRawlings/AIJobs/internal/config"
	"github.com/ReedRawlings/AIJobs/internal/fetch"
	"github.com/ReedRawlings/AIJobs/internal/model"
	"github.com/ReedRawlings/AIJobs/internal/notify"
	"github.com/ReedRawlings/AIJobs/internal/output"
	"github.com/ReedRawlings/AIJobs/internal/pipeline"
	"github.com/ReedRawlings/AIJobs/internal/reconcile"
	"github.com/ReedRawlings/AIJobs/internal/runlog"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "aijobs",
	Short: "Track job postings across AI lab career pages",
	Long:  "aijobs polls company job boards, diffs them against the last known state, and records what appeared, changed, and closed.",
	// Default to `run` so a bare invocation does one tracking cycle.
	// This keeps cron entries that invoke the binary directly working.
	RunE:         runRun,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: AIJOBS_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > AIJOBS_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	// A .env file feeds the ${VAR} expansions inside the config file.
	// No .env is fine.
	_ = godotenv.Load()

	if path == "" {
		if env := os.Getenv("AIJOBS_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// buildAdapters constructs one adapter per enabled company, each with
// its own fetch client so politeness overrides stay per-board.
func buildAdapters(cfg *config.Config, logger *slog.Logger) []model.Adapter {
	var adapters []model.Adapter
	for _, company := range cfg.EnabledCompanies() {
		fc := cfg.FetchFor(company)
		client := fetch.New(fetch.Config{
			Timeout:     fc.Timeout,
			MaxAttempts: fc.MaxAttempts,
			DelayMin:    fc.DelayMin,
			DelayMax:    fc.DelayMax,
			BackoffUnit: fc.BackoffUnit,
			UserAgent:   fc.UserAgent,
		}, logger)

		ad, err := adapter.New(company.Source, company.Name, company.DisplayName, company.URL, client, logger)
		if err != nil {
			logger.Warn("skipping company", "company", company.Name, "source", company.Source, "error", err)
			continue
		}
		adapters = append(adapters, ad)
		logger.Info("registered company", "name", company.Name, "source", company.Source)
	}
	return adapters
}

func setupNotifier(cfg *config.Config, logger *slog.Logger) model.RunNotifier {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	switch cfg.Notify.Type {
	case "ntfy":
		logger.Info("using ntfy notifier", "topic", cfg.Notify.NtfyTopic)
		return notify.NewNtfyNotifier(cfg.Notify.NtfyTopic, httpClient, logger)
	case "slack":
		logger.Info("using slack notifier")
		return notify.NewSlackNotifier(cfg.Notify.SlackWebhookURL, httpClient, logger)
	default:
		return notify.NewNoopNotifier(logger)
	}
}

// buildPipeline wires a full tracking pipeline from the config. The
// returned cleanup closes the run ledger and must be called when the
// pipeline is done.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	adapters := buildAdapters(cfg, logger)

	var recorder model.RunRecorder
	cleanup := func() {}
	if cfg.RunDBPath != "" {
		store, err := runlog.New(cfg.RunDBPath)
		if err != nil {
			return nil, nil, err
		}
		recorder = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Error("closing run ledger failed", "error", err)
			}
		}
	}

	p := pipeline.New(
		adapter.NewRunner(adapters, cfg.MaxParallel, cfg.AdapterTimeout, logger),
		reconcile.NewEngine(cfg.RegistryPath, logger),
		output.NewSink(cfg.OutputDir, logger),
		recorder,
		setupNotifier(cfg, logger),
		logger,
	)
	return p, cleanup, nil
}
