package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// Config is the root configuration for the aijobs tracker.
type Config struct {
	RegistryPath   string
	OutputDir      string
	RunDBPath      string // empty disables the run ledger
	MaxParallel    int
	AdapterTimeout time.Duration // 0 disables the per-board deadline
	WatchInterval  time.Duration
	LogFormat      string
	Fetch          FetchConfig
	Notify         NotifyConfig
	Companies      []CompanyConfig
}

// FetchConfig holds the HTTP settings shared by all boards.
type FetchConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	DelayMin    time.Duration
	DelayMax    time.Duration
	BackoffUnit time.Duration
	UserAgent   string
}

// NotifyConfig controls which notifier is used and its settings.
type NotifyConfig struct {
	Type            string `yaml:"type"`              // "none", "ntfy" or "slack"
	NtfyTopic       string `yaml:"ntfy_topic"`        // required if type is "ntfy"
	SlackWebhookURL string `yaml:"slack_webhook_url"` // required if type is "slack"
}

// CompanyConfig describes a single company board to poll.
type CompanyConfig struct {
	Name        string
	DisplayName string
	Source      model.Source
	URL         string
	Enabled     bool
	DelayMin    time.Duration // optional politeness override, 0 inherits fetch.delay_min
	DelayMax    time.Duration
}

// EnabledCompanies returns the companies that should be polled.
func (c *Config) EnabledCompanies() []CompanyConfig {
	var out []CompanyConfig
	for _, co := range c.Companies {
		if co.Enabled {
			out = append(out, co)
		}
	}
	return out
}

// FetchFor returns the fetch settings for one company, applying its
// politeness overrides on top of the global settings.
func (c *Config) FetchFor(company CompanyConfig) FetchConfig {
	fc := c.Fetch
	if company.DelayMin > 0 {
		fc.DelayMin = company.DelayMin
	}
	if company.DelayMax > 0 {
		fc.DelayMax = company.DelayMax
	}
	return fc
}

const (
	defaultRegistryPath = "outputs/registry/current_jobs.json"
	defaultOutputDir    = "outputs"
	defaultRunDBPath    = "outputs/runs.db"
	defaultUserAgent    = "aijobs/0.x (job change tracker)"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	RegistryPath string `yaml:"registry_path"`
	OutputDir    string `yaml:"output_dir"`
	// Pointer so an explicit empty string (ledger off) is
	// distinguishable from an absent key (default path).
	RunDBPath      *string            `yaml:"run_db_path"`
	MaxParallel    int                `yaml:"max_parallel"`
	AdapterTimeout string             `yaml:"adapter_timeout"`
	WatchInterval  string             `yaml:"watch_interval"`
	LogFormat      string             `yaml:"log_format"`
	Fetch          rawFetchConfig     `yaml:"fetch"`
	Notify         NotifyConfig       `yaml:"notify"`
	Companies      []rawCompanyConfig `yaml:"companies"`
}

type rawFetchConfig struct {
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"`
	DelayMin    string `yaml:"delay_min"`
	DelayMax    string `yaml:"delay_max"`
	BackoffUnit string `yaml:"backoff_unit"`
	UserAgent   string `yaml:"user_agent"`
}

type rawCompanyConfig struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Source      string `yaml:"source"`
	URL         string `yaml:"url"`
	Enabled     bool   `yaml:"enabled"`
	DelayMin    string `yaml:"delay_min"`
	DelayMax    string `yaml:"delay_max"`
}

// Load reads and parses the YAML config file at path, applies defaults,
// validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	adapterTimeout, err := parseDuration("adapter_timeout", raw.AdapterTimeout, 0)
	if err != nil {
		return nil, err
	}
	watchInterval, err := parseDuration("watch_interval", raw.WatchInterval, 6*time.Hour)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("fetch.timeout", raw.Fetch.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	delayMin, err := parseDuration("fetch.delay_min", raw.Fetch.DelayMin, 1*time.Second)
	if err != nil {
		return nil, err
	}
	delayMax, err := parseDuration("fetch.delay_max", raw.Fetch.DelayMax, 3*time.Second)
	if err != nil {
		return nil, err
	}
	backoffUnit, err := parseDuration("fetch.backoff_unit", raw.Fetch.BackoffUnit, 1*time.Second)
	if err != nil {
		return nil, err
	}

	companies := make([]CompanyConfig, 0, len(raw.Companies))
	for i, rc := range raw.Companies {
		source, err := model.ParseSource(rc.Source)
		if err != nil {
			return nil, fmt.Errorf("companies[%d] %q: %w", i, rc.Name, err)
		}
		companyMin, err := parseDuration(fmt.Sprintf("companies[%d].delay_min", i), rc.DelayMin, 0)
		if err != nil {
			return nil, err
		}
		companyMax, err := parseDuration(fmt.Sprintf("companies[%d].delay_max", i), rc.DelayMax, 0)
		if err != nil {
			return nil, err
		}
		displayName := rc.DisplayName
		if displayName == "" {
			displayName = rc.Name
		}
		companies = append(companies, CompanyConfig{
			Name:        rc.Name,
			DisplayName: displayName,
			Source:      source,
			URL:         rc.URL,
			Enabled:     rc.Enabled,
			DelayMin:    companyMin,
			DelayMax:    companyMax,
		})
	}

	runDBPath := defaultRunDBPath
	if raw.RunDBPath != nil {
		runDBPath = *raw.RunDBPath
	}

	cfg := &Config{
		RegistryPath:   stringOr(raw.RegistryPath, defaultRegistryPath),
		OutputDir:      stringOr(raw.OutputDir, defaultOutputDir),
		RunDBPath:      runDBPath,
		MaxParallel:    raw.MaxParallel,
		AdapterTimeout: adapterTimeout,
		WatchInterval:  watchInterval,
		LogFormat:      stringOr(raw.LogFormat, "text"),
		Fetch: FetchConfig{
			Timeout:     fetchTimeout,
			MaxAttempts: raw.Fetch.MaxAttempts,
			DelayMin:    delayMin,
			DelayMax:    delayMax,
			BackoffUnit: backoffUnit,
			UserAgent:   stringOr(raw.Fetch.UserAgent, defaultUserAgent),
		},
		Notify:    raw.Notify,
		Companies: companies,
	}
	if cfg.MaxParallel == 0 {
		cfg.MaxParallel = 4
	}
	if cfg.Fetch.MaxAttempts == 0 {
		cfg.Fetch.MaxAttempts = 3
	}
	if cfg.Notify.Type == "" {
		cfg.Notify.Type = "none"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return d, nil
}

func stringOr(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func validate(cfg *Config) error {
	if cfg.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", cfg.MaxParallel)
	}
	if cfg.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be at least 1, got %d", cfg.Fetch.MaxAttempts)
	}
	if cfg.Fetch.DelayMin > cfg.Fetch.DelayMax {
		return fmt.Errorf("fetch.delay_min %v exceeds fetch.delay_max %v", cfg.Fetch.DelayMin, cfg.Fetch.DelayMax)
	}
	if cfg.WatchInterval <= 0 {
		return fmt.Errorf("watch_interval must be positive, got %v", cfg.WatchInterval)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", cfg.LogFormat)
	}

	if len(cfg.Companies) == 0 {
		return fmt.Errorf("at least one company must be configured")
	}
	enabled := 0
	for i, c := range cfg.Companies {
		if c.Name == "" {
			return fmt.Errorf("companies[%d]: name is required", i)
		}
		if c.URL == "" {
			return fmt.Errorf("company %q: url is required", c.Name)
		}
		if c.DelayMin > 0 && c.DelayMax > 0 && c.DelayMin > c.DelayMax {
			return fmt.Errorf("company %q: delay_min %v exceeds delay_max %v", c.Name, c.DelayMin, c.DelayMax)
		}
		if c.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one company must be enabled")
	}

	switch cfg.Notify.Type {
	case "none":
	case "ntfy":
		if cfg.Notify.NtfyTopic == "" {
			return fmt.Errorf("notify.ntfy_topic is required when type is \"ntfy\"")
		}
	case "slack":
		if cfg.Notify.SlackWebhookURL == "" {
			return fmt.Errorf("notify.slack_webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notify.SlackWebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notify.slack_webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notify.type must be one of none, ntfy, slack, got %q", cfg.Notify.Type)
	}

	return nil
}
