// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port          int    `yaml:"port"`
	APIKey        string `yaml:"api_key"`
	SessionSecret string `yaml:"session_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"` // per-provider ledger lock TTL
}

// TierFees is one tier's row in the fee schedule.
type TierFees struct {
	// Rate is the platform fee percentage applied to the full service price.
	Rate float64 `yaml:"rate"`
	// DepositMinimum is the tier's deposit floor percentage. Service-level
	// overrides may raise it, never lower it.
	DepositMinimum float64 `yaml:"deposit_minimum"`
	// CanDisableDeposit: only the top tier may turn deposits off entirely.
	CanDisableDeposit bool `yaml:"can_disable_deposit"`
}

// FeesConfig is the typed fee schedule. Explicit per-tier fields instead of
// a string-keyed settings map: admins edit the YAML, code reads fields.
type FeesConfig struct {
	// GatewayRate is the global gateway fee percentage; not tier-dependent.
	GatewayRate float64  `yaml:"gateway_rate"`
	Starter     TierFees `yaml:"starter"`
	Growth      TierFees `yaml:"growth"`
	Premium     TierFees `yaml:"premium"`
}

type PayoutConfig struct {
	// Cadence: daily | weekly | biweekly | monthly.
	Cadence string `yaml:"cadence"`
	// MinimumAmount is the payout eligibility threshold.
	MinimumAmount float64 `yaml:"minimum_amount"`
	Currency      string  `yaml:"currency"`
	Method        string  `yaml:"method"` // e.g. bank_transfer
	// ScheduleCron / ProcessCron drive the background worker ticks.
	ScheduleCron string `yaml:"schedule_cron"`
	ProcessCron  string `yaml:"process_cron"`
	BatchLimit   int    `yaml:"batch_limit"`
}

type WiPayConfig struct {
	AccountNumber      string `yaml:"account_number"`
	APIKey             string `yaml:"api_key"`
	CountryCode        string `yaml:"country_code"`
	Sandbox            bool   `yaml:"sandbox"`
	PlatformMerchantID string `yaml:"platform_merchant_id"`
}

type GatewaysConfig struct {
	WiPay     WiPayConfig `yaml:"wipay"`
	ReturnURL string      `yaml:"return_url"`
	CancelURL string      `yaml:"cancel_url"`
	// Timeout / retry policy for all gateway HTTP calls.
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryBaseMs int           `yaml:"retry_base_ms"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Fees       FeesConfig       `yaml:"fees"`
	Payout     PayoutConfig     `yaml:"payout"`
	Gateways   GatewaysConfig   `yaml:"gateways"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Security   SecurityConfig   `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 10 * time.Second
	}
	if cfg.Fees.GatewayRate <= 0 {
		cfg.Fees.GatewayRate = 4.0
	}
	applyTierDefaults(&cfg.Fees)
	if cfg.Payout.Cadence == "" {
		cfg.Payout.Cadence = "weekly"
	}
	if cfg.Payout.MinimumAmount <= 0 {
		cfg.Payout.MinimumAmount = 100
	}
	if cfg.Payout.Currency == "" {
		cfg.Payout.Currency = "TTD"
	}
	if cfg.Payout.Method == "" {
		cfg.Payout.Method = "bank_transfer"
	}
	if cfg.Payout.ScheduleCron == "" {
		cfg.Payout.ScheduleCron = "0 * * * *" // hourly
	}
	if cfg.Payout.ProcessCron == "" {
		cfg.Payout.ProcessCron = "*/15 * * * *"
	}
	if cfg.Payout.BatchLimit <= 0 {
		cfg.Payout.BatchLimit = 200
	}
	if cfg.Gateways.Timeout <= 0 {
		cfg.Gateways.Timeout = 15 * time.Second
	}
	if cfg.Gateways.MaxRetries <= 0 {
		cfg.Gateways.MaxRetries = 3
	}
	if cfg.Gateways.RetryBaseMs <= 0 {
		cfg.Gateways.RetryBaseMs = 250
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if !validCadence(cfg.Payout.Cadence) {
		return nil, fmt.Errorf("payout.cadence %q is not one of daily|weekly|biweekly|monthly", cfg.Payout.Cadence)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// applyTierDefaults fills the published fee schedule. The cheapest tier pays
// the highest platform rate.
func applyTierDefaults(f *FeesConfig) {
	if f.Starter.Rate <= 0 {
		f.Starter.Rate = 5.0
	}
	if f.Growth.Rate <= 0 {
		f.Growth.Rate = 4.0
	}
	if f.Premium.Rate <= 0 {
		f.Premium.Rate = 3.0
	}
	if f.Starter.DepositMinimum <= 0 {
		f.Starter.DepositMinimum = 25
	}
	if f.Growth.DepositMinimum <= 0 {
		f.Growth.DepositMinimum = 20
	}
	if f.Premium.DepositMinimum <= 0 {
		f.Premium.DepositMinimum = 15
	}
	// Only the top tier may disable deposits regardless of what the file
	// says for lower tiers.
	f.Starter.CanDisableDeposit = false
	f.Growth.CanDisableDeposit = false
	f.Premium.CanDisableDeposit = true
}

func validCadence(c string) bool {
	switch c {
	case "daily", "weekly", "biweekly", "monthly":
		return true
	}
	return false
}
