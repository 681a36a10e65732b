package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port      int           `yaml:"port"`
	APISecret string        `yaml:"api_secret"` // HMAC secret for staff JWTs
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type GatewayConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Currency      string        `yaml:"currency"`
	Timeout       time.Duration `yaml:"timeout"`
}

type LedgerConfig struct {
	// OverpayEpsilon absorbs rounding spill when the final installment closes
	// a plan slightly above its balance. Anything larger is rejected.
	// Kept as a string in YAML; parsed once at load time.
	OverpayEpsilon string `yaml:"overpay_epsilon"`
	Workers        int    `yaml:"workers"` // side-effect pool size

	epsilon decimal.Decimal
}

// Epsilon returns the parsed overpay tolerance.
func (c *LedgerConfig) Epsilon() decimal.Decimal { return c.epsilon }

type SweeperConfig struct {
	Interval      time.Duration `yaml:"interval"`
	ThresholdDays int           `yaml:"threshold_days"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

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
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.TokenTTL <= 0 {
		cfg.Server.TokenTTL = 30 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Gateway.Currency == "" {
		cfg.Gateway.Currency = "USD"
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Ledger.OverpayEpsilon == "" {
		cfg.Ledger.OverpayEpsilon = "0.01"
	}
	eps, err := decimal.NewFromString(cfg.Ledger.OverpayEpsilon)
	if err != nil || eps.IsNegative() {
		return nil, fmt.Errorf("ledger.overpay_epsilon %q is not a valid non-negative amount", cfg.Ledger.OverpayEpsilon)
	}
	cfg.Ledger.epsilon = eps
	if cfg.Ledger.Workers <= 0 {
		cfg.Ledger.Workers = 4
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = time.Hour
	}
	if cfg.Sweeper.ThresholdDays < 0 {
		cfg.Sweeper.ThresholdDays = 0
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = 5 * time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Server.APISecret == "" && !dev {
		return nil, errors.New("server.api_secret is required outside dev mode")
	}
	if cfg.Gateway.WebhookSecret == "" && !dev {
		return nil, errors.New("gateway.webhook_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
