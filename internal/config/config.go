package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"alphaforge/internal/alpha"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all alphaforge configuration.
type Config struct {
	// Remote evaluation service
	Brain BrainConfig `yaml:"brain"`

	// Settings every generated or rendered record is placed on
	Template alpha.Settings `yaml:"template"`

	Variation  VariationConfig  `yaml:"variation"`
	Simulation SimulationConfig `yaml:"simulation"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Submit     SubmitConfig     `yaml:"submit"`
	Seed       SeedConfig       `yaml:"seed"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BrainConfig configures the HTTP client of the evaluation service.
type BrainConfig struct {
	BaseURL         string `yaml:"base_url"`
	Timeout         string `yaml:"timeout"`
	RateLimitWait   string `yaml:"rate_limit_wait"` // used when a 429 carries no Retry-After
	CredentialsFile string `yaml:"credentials_file"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
}

// VariationConfig selects the vocabularies scanned for token axes.
type VariationConfig struct {
	// Names of built-in vocabularies; empty means all of them.
	Vocabularies []string `yaml:"vocabularies,omitempty"`
}

// SimulationConfig configures the submission pipeline.
type SimulationConfig struct {
	Tolerance   int    `yaml:"tolerance"`
	RetryDelay  string `yaml:"retry_delay"`
	PollTimeout string `yaml:"poll_timeout"` // "0" or empty polls until the service answers
}

// FetchConfig configures candidate population paging.
type FetchConfig struct {
	MaxItems   int              `yaml:"max_items"`
	PageSize   int              `yaml:"page_size"`
	MaxRetries int              `yaml:"max_retries"`
	RetryDelay string           `yaml:"retry_delay"`
	Thresholds alpha.Thresholds `yaml:"thresholds"`
}

// SubmitConfig configures production submission of existing alphas.
type SubmitConfig struct {
	MaxItems        int              `yaml:"max_items"`
	PageSize        int              `yaml:"page_size"`
	BatchSize       int              `yaml:"batch_size"`
	MonitorAttempts int              `yaml:"monitor_attempts"`
	MonitorInterval string           `yaml:"monitor_interval"`
	RetryDelay      string           `yaml:"retry_delay"`
	Thresholds      alpha.Thresholds `yaml:"thresholds"`
}

// SeedConfig configures data-field search for ratio seeding.
type SeedConfig struct {
	PageSize    int `yaml:"page_size"`
	Concurrency int `yaml:"concurrency"`
}

// LedgerConfig selects the outcome log backend.
type LedgerConfig struct {
	Backend    string `yaml:"backend"` // json, sqlite
	Path       string `yaml:"path"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Location returns the path of the configured backend.
func (c LedgerConfig) Location() string {
	if c.Backend == "sqlite" {
		return c.SQLitePath
	}
	return c.Path
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Brain: BrainConfig{
			BaseURL:         "https://api.worldquantbrain.com",
			Timeout:         "60s",
			RateLimitWait:   "60s",
			CredentialsFile: "credential.txt",
		},

		Template: alpha.DefaultSettings(),

		Simulation: SimulationConfig{
			Tolerance:   3,
			RetryDelay:  "5s",
			PollTimeout: "0",
		},

		Fetch: FetchConfig{
			MaxItems:   180,
			PageSize:   100,
			MaxRetries: 3,
			RetryDelay: "60s",
			Thresholds: alpha.Thresholds{MinSharpe: 1.0, MinFitness: 0.5, MinReturn: 0},
		},

		Submit: SubmitConfig{
			MaxItems:        3000,
			PageSize:        100,
			BatchSize:       5,
			MonitorAttempts: 30,
			MonitorInterval: "10s",
			RetryDelay:      "60s",
			Thresholds:      alpha.Thresholds{MinSharpe: 1.25, MinFitness: 1.0},
		},

		Seed: SeedConfig{
			PageSize:    50,
			Concurrency: 4,
		},

		Ledger: LedgerConfig{
			Backend:    "json",
			Path:       "submission_results.json",
			SQLitePath: "alphaforge.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		data = nil
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WQB_USERNAME"); v != "" {
		c.Brain.Username = v
	}
	if v := os.Getenv("WQB_PASSWORD"); v != "" {
		c.Brain.Password = v
	}
	if url := os.Getenv("ALPHAFORGE_BASE_URL"); url != "" {
		c.Brain.BaseURL = url
	}

	// A path ending in .db switches the backend as well.
	if path := os.Getenv("ALPHAFORGE_LEDGER"); path != "" {
		if filepath.Ext(path) == ".db" {
			c.Ledger.Backend = "sqlite"
			c.Ledger.SQLitePath = path
		} else {
			c.Ledger.Backend = "json"
			c.Ledger.Path = path
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetBrainTimeout returns the HTTP timeout as a duration.
func (c *Config) GetBrainTimeout() time.Duration {
	return parseDuration(c.Brain.Timeout, 60*time.Second)
}

// GetRateLimitWait returns the fallback wait after a 429 without Retry-After.
func (c *Config) GetRateLimitWait() time.Duration {
	return parseDuration(c.Brain.RateLimitWait, 60*time.Second)
}

// GetRetryDelay returns the pipeline's fixed delay between attempts.
func (c *Config) GetRetryDelay() time.Duration {
	return parseDuration(c.Simulation.RetryDelay, 5*time.Second)
}

// GetPollTimeout returns the per-item polling bound. Zero means unbounded.
func (c *Config) GetPollTimeout() time.Duration {
	return parseDuration(c.Simulation.PollTimeout, 0)
}

// GetFetchRetryDelay returns the delay between failed inventory page fetches.
func (c *Config) GetFetchRetryDelay() time.Duration {
	return parseDuration(c.Fetch.RetryDelay, 60*time.Second)
}

// GetMonitorInterval returns the delay between submission status checks.
func (c *Config) GetMonitorInterval() time.Duration {
	return parseDuration(c.Submit.MonitorInterval, 10*time.Second)
}

// GetSubmitRetryDelay returns the delay after a failed submission page fetch.
func (c *Config) GetSubmitRetryDelay() time.Duration {
	return parseDuration(c.Submit.RetryDelay, 60*time.Second)
}

// ValidBackends lists the supported ledger backends.
var ValidBackends = []string{"json", "sqlite"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Brain.BaseURL == "" {
		return fmt.Errorf("%w: brain.base_url is empty", ErrInvalid)
	}
	if c.Simulation.Tolerance <= 0 {
		return fmt.Errorf("%w: simulation.tolerance must be positive, got %d", ErrInvalid, c.Simulation.Tolerance)
	}
	if c.Fetch.PageSize <= 0 || c.Submit.PageSize <= 0 {
		return fmt.Errorf("%w: page sizes must be positive", ErrInvalid)
	}
	if c.Submit.BatchSize <= 0 {
		return fmt.Errorf("%w: submit.batch_size must be positive, got %d", ErrInvalid, c.Submit.BatchSize)
	}
	if c.Submit.MonitorAttempts <= 0 {
		return fmt.Errorf("%w: submit.monitor_attempts must be positive, got %d", ErrInvalid, c.Submit.MonitorAttempts)
	}
	if !contains(ValidBackends, c.Ledger.Backend) {
		return fmt.Errorf("%w: ledger backend %q (valid: %v)", ErrInvalid, c.Ledger.Backend, ValidBackends)
	}
	return c.Logging.validate()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
