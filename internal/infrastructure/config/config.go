// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	revolutToken := cfg.Banks.Revolut.APIToken
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Banks         BanksConfig         `yaml:"banks"`
	Policy        PolicyConfig        `yaml:"policy"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Storage       StorageConfig       `yaml:"storage"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Observability ObservabilityConfig `yaml:"observability"`
	API           APIConfig           `yaml:"api"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LedgerConfig holds the payout record store (sheet proxy) configuration
type LedgerConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token"`
}

// NotificationsConfig holds payout notification settings
type NotificationsConfig struct {
	Enabled bool   `yaml:"enabled"`
	AMQPURL string `yaml:"amqp_url"`
	Queue   string `yaml:"queue"`
}

// BanksConfig holds bank-specific configuration
type BanksConfig struct {
	Revolut RevolutConfig `yaml:"revolut"`
	Mercury MercuryConfig `yaml:"mercury"`
	Wise    WiseConfig    `yaml:"wise"`
}

// RevolutConfig holds Revolut-specific settings
type RevolutConfig struct {
	Enabled           bool              `yaml:"enabled"`
	BaseURL           string            `yaml:"base_url"`
	APIToken          string            `yaml:"api_token"`
	Currency          string            `yaml:"currency"`
	MainAccountMarker string            `yaml:"main_account_marker"`
	Counterparties    map[string]string `yaml:"counterparties"`
}

// MercuryConfig holds Mercury-specific settings
type MercuryConfig struct {
	Enabled           bool              `yaml:"enabled"`
	BaseURL           string            `yaml:"base_url"`
	APIToken          string            `yaml:"api_token"`
	Currency          string            `yaml:"currency"`
	MainAccountMarker string            `yaml:"main_account_marker"`
	Counterparties    map[string]string `yaml:"counterparties"`
}

// WiseConfig holds Wise-specific settings.
// Wise exposes balances only; transfers out of it are manual.
type WiseConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	APIToken  string `yaml:"api_token"`
	ProfileID string `yaml:"profile_id"`
	Currency  string `yaml:"currency"`
}

// PolicyConfig holds the matching and consolidation policy knobs.
// These were observed operational constants; keep them configurable.
type PolicyConfig struct {
	Platforms            map[string]PlatformFeeConfig `yaml:"platforms"`
	ScoreThreshold       float64                      `yaml:"score_threshold"`
	ComboTolerance       float64                      `yaml:"combo_tolerance"`
	AdjustmentNoteCutoff float64                      `yaml:"adjustment_note_cutoff"`
	MinBalanceUSD        float64                      `yaml:"min_balance_usd"`
	TopupAmountUSD       float64                      `yaml:"topup_amount_usd"`
	SourcePriority       []string                     `yaml:"source_priority"`
	PendingTransferDays  int                          `yaml:"pending_transfer_days"`
	TransactionFeedLimit int                          `yaml:"transaction_feed_limit"`
}

// PlatformFeeConfig describes how a payout platform discounts base amounts.
// Expected payout is base * share; the acceptance band runs from
// expected - band_low_offset up to the base amount (band_to_base: true) or
// up to the expected amount.
type PlatformFeeConfig struct {
	Share         float64 `yaml:"share"`
	BandLowOffset float64 `yaml:"band_low_offset"`
	BandToBase    bool    `yaml:"band_to_base"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APIConfig holds HTTP API server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${REVOLUT_TOKEN})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("TREASURY_DB_PATH", "treasury_engine.db"),
		},
		Ledger: LedgerConfig{
			BaseURL:  os.Getenv("LEDGER_PROXY_URL"),
			APIToken: os.Getenv("LEDGER_PROXY_TOKEN"),
		},
		Banks: BanksConfig{
			Revolut: RevolutConfig{
				Enabled:           true,
				BaseURL:           getEnv("REVOLUT_BASE_URL", "https://b2b.revolut.com"),
				APIToken:          os.Getenv("REVOLUT_TOKEN"),
				Currency:          getEnv("REVOLUT_CURRENCY", "USD"),
				MainAccountMarker: getEnv("REVOLUT_MAIN_MARKER", "Main"),
			},
			Mercury: MercuryConfig{
				Enabled:           true,
				BaseURL:           getEnv("MERCURY_BASE_URL", "https://api.mercury.com"),
				APIToken:          os.Getenv("MERCURY_TOKEN"),
				Currency:          getEnv("MERCURY_CURRENCY", "USD"),
				MainAccountMarker: getEnv("MERCURY_MAIN_MARKER", "Main"),
			},
			Wise: WiseConfig{
				Enabled:   false,
				BaseURL:   getEnv("WISE_BASE_URL", "https://api.transferwise.com"),
				APIToken:  os.Getenv("WISE_TOKEN"),
				ProfileID: os.Getenv("WISE_PROFILE_ID"),
				Currency:  getEnv("WISE_CURRENCY", "USD"),
			},
		},
		Notifications: NotificationsConfig{
			Enabled: os.Getenv("AMQP_URL") != "",
			AMQPURL: os.Getenv("AMQP_URL"),
			Queue:   getEnv("AMQP_QUEUE", "payout-events"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}

	cfg.applyDefaults()

	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills in policy and API defaults for fields left at zero value
func (c *Config) applyDefaults() {
	if c.Policy.ScoreThreshold == 0 {
		c.Policy.ScoreThreshold = 0.80
	}
	if c.Policy.ComboTolerance == 0 {
		c.Policy.ComboTolerance = 0.05
	}
	if c.Policy.AdjustmentNoteCutoff == 0 {
		c.Policy.AdjustmentNoteCutoff = 10
	}
	if c.Policy.MinBalanceUSD == 0 {
		c.Policy.MinBalanceUSD = 1000
	}
	if c.Policy.TopupAmountUSD == 0 {
		c.Policy.TopupAmountUSD = 3000
	}
	if c.Policy.PendingTransferDays == 0 {
		c.Policy.PendingTransferDays = 5
	}
	if c.Policy.TransactionFeedLimit == 0 {
		c.Policy.TransactionFeedLimit = 50
	}
	if len(c.Policy.SourcePriority) == 0 {
		c.Policy.SourcePriority = []string{"revolut", "mercury"}
	}
	if len(c.Policy.Platforms) == 0 {
		c.Policy.Platforms = map[string]PlatformFeeConfig{
			"apex":     {Share: 0.90, BandLowOffset: 20, BandToBase: true},
			"topstep":  {Share: 0.90, BandLowOffset: 20, BandToBase: true},
			"bulenox":  {Share: 0.80, BandLowOffset: 20, BandToBase: false},
			"fundingx": {Share: 0.80, BandLowOffset: 20, BandToBase: false},
		}
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if len(c.API.AllowedOrigins) == 0 {
		c.API.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "treasury_engine.db"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// GetAPIKey retrieves an API key from config first, then tries multiple environment variable names
// Usage: GetAPIKey(cfg.Banks.Revolut.APIToken, "REVOLUT_TOKEN")
func (c *Config) GetAPIKey(configValue string, envVarNames ...string) string {
	// First, try the config value
	if configValue != "" {
		return configValue
	}

	// Then try each environment variable in order
	for _, envVar := range envVarNames {
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}

	return ""
}

// Validate reports obviously unusable configuration early.
// Only structural problems are checked; missing tokens surface as connector
// failures at run time so a partially configured engine can still operate.
func (c *Config) Validate() error {
	if c.Policy.ScoreThreshold <= 0 || c.Policy.ScoreThreshold >= 1 {
		return fmt.Errorf("policy.score_threshold must be in (0,1), got %v", c.Policy.ScoreThreshold)
	}
	if c.Policy.ComboTolerance <= 0 || c.Policy.ComboTolerance >= 1 {
		return fmt.Errorf("policy.combo_tolerance must be in (0,1), got %v", c.Policy.ComboTolerance)
	}
	if c.Policy.TopupAmountUSD <= 0 {
		return fmt.Errorf("policy.topup_amount_usd must be positive, got %v", c.Policy.TopupAmountUSD)
	}
	for name, fee := range c.Policy.Platforms {
		if fee.Share <= 0 || fee.Share > 1 {
			return fmt.Errorf("policy.platforms.%s.share must be in (0,1], got %v", name, fee.Share)
		}
	}
	return nil
}
