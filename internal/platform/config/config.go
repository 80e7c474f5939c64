// Package config loads the two configuration surfaces this module reads at
// startup: environment variables for anything that varies by deployment
// (secrets, tunables, DSNs), and a static YAML file for the pricing-category
// cutoffs, which are a product decision rather than a deployment one.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/domainscout/core/internal/platform/logger"
)

// Config is the process-wide env-derived configuration.
type Config struct {
	HTTPAddr string
	JWTSecretKey string

	PostgresDSN string
	DataDir     string

	RunServer    bool
	RunScheduler bool

	MaxBatches    int
	TargetResults int
	BatchDelay    time.Duration

	DriverProvider string
	SwarmProvider  string

	SchedulerPollInterval time.Duration
	SchedulerClaimLimit   int

	RedisURL string

	Pricing PricingConfig
}

func Load(log *logger.Logger) (Config, error) {
	cfg := Config{
		HTTPAddr:     GetEnv("HTTP_ADDR", ":8080", log),
		JWTSecretKey: GetEnv("JWT_SECRET_KEY", "", log),
		PostgresDSN:  GetEnv("POSTGRES_DSN", "", log),
		DataDir:      GetEnv("DATA_DIR", "./data", log),

		RunServer:    envBool(GetEnv("RUN_SERVER", "true", log)),
		RunScheduler: envBool(GetEnv("RUN_SCHEDULER", "true", log)),

		MaxBatches:    GetEnvAsInt("MAX_BATCHES", 6, log),
		TargetResults: GetEnvAsInt("TARGET_RESULTS", 25, log),
		BatchDelay:    time.Duration(GetEnvAsInt("BATCH_DELAY_SECONDS", 10, log)) * time.Second,

		DriverProvider: GetEnv("DRIVER_PROVIDER", "claude", log),
		SwarmProvider:  GetEnv("SWARM_PROVIDER", "deepseek", log),

		SchedulerPollInterval: time.Duration(GetEnvAsInt("SCHEDULER_POLL_SECONDS", 2, log)) * time.Second,
		SchedulerClaimLimit:   GetEnvAsInt("SCHEDULER_CLAIM_LIMIT", 5, log),

		RedisURL: GetEnv("REDIS_URL", "", log),
	}

	if cfg.JWTSecretKey == "" {
		return cfg, fmt.Errorf("config: JWT_SECRET_KEY is required")
	}
	if cfg.PostgresDSN == "" {
		return cfg, fmt.Errorf("config: POSTGRES_DSN is required")
	}

	pricingPath := GetEnv("PRICING_CONFIG_PATH", "", log)
	pricing, err := LoadPricingConfig(pricingPath)
	if err != nil {
		return cfg, fmt.Errorf("config: pricing config: %w", err)
	}
	cfg.Pricing = pricing

	return cfg, nil
}

func envBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// PricingConfig holds the display-price category cutoffs, in cents, used to
// classify a registrar quote as bundled/recommended/premium (spec.md §4.1).
type PricingConfig struct {
	BundledMaxCents     int64 `yaml:"bundled_max_cents"`
	RecommendedMaxCents int64 `yaml:"recommended_max_cents"`
}

func defaultPricingConfig() PricingConfig {
	return PricingConfig{BundledMaxCents: 3000, RecommendedMaxCents: 5000}
}

// LoadPricingConfig reads the YAML pricing config from path. An empty path
// returns the built-in defaults (bundled <=$30, recommended <=$50) without
// touching the filesystem, so tests and small deployments need no file.
func LoadPricingConfig(path string) (PricingConfig, error) {
	if strings.TrimSpace(path) == "" {
		return defaultPricingConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return PricingConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	cfg := defaultPricingConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return PricingConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Category buckets a price in cents per the configured cutoffs. nil price
// (no registrar quote available) is always "unknown".
func (p PricingConfig) Category(priceCents *int64) string {
	if priceCents == nil {
		return "unknown"
	}
	switch {
	case *priceCents <= p.BundledMaxCents:
		return "bundled"
	case *priceCents <= p.RecommendedMaxCents:
		return "recommended"
	default:
		return "premium"
	}
}
