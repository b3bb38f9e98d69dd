package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	envPrefix  = "RENO"
	devEnv     = "dev"
	dotEnvFile = ".env"
)

// Config holds application configuration sourced from RENO_* environment variables.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	DBPath   string `envconfig:"DB_PATH" default:"./reno.db"`
	Env      string `envconfig:"ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	CatalogPath           string        `envconfig:"CATALOG_PATH" default:"./data/prices.json"`
	CatalogFallback       bool          `envconfig:"CATALOG_FALLBACK" default:"false"`
	CatalogReloadInterval time.Duration `envconfig:"CATALOG_RELOAD_INTERVAL" default:"0s"`

	// APIKeys are "name:key" or bare "key" entries, comma separated.
	APIKeys        []string `envconfig:"API_KEYS"`
	RateLimitRPS   float64  `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"10"`

	StrictJobTypes bool   `envconfig:"STRICT_JOB_TYPES" default:"false"`
	DurationPolicy string `envconfig:"DURATION_POLICY" default:"overlap"`
}

// IsDev reports whether the service runs in the development environment.
func (c Config) IsDev() bool {
	return c.Env == devEnv
}

// Load reads .env (if present) and the process environment and returns a populated Config.
func Load() (Config, error) {
	// Best-effort: a missing .env is fine; production injects real env vars.
	if err := loadDotEnv(dotEnvFile); err != nil {
		return Config{}, fmt.Errorf("load %s: %w", dotEnvFile, err)
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if cfg.RateLimitRPS <= 0 {
		return Config{}, fmt.Errorf("RENO_RATE_LIMIT_RPS must be positive, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst < 1 {
		return Config{}, fmt.Errorf("RENO_RATE_LIMIT_BURST must be at least 1, got %d", cfg.RateLimitBurst)
	}
	if cfg.CatalogReloadInterval < 0 {
		return Config{}, fmt.Errorf("RENO_CATALOG_RELOAD_INTERVAL must not be negative, got %s", cfg.CatalogReloadInterval)
	}

	return cfg, nil
}

// Warn logs configuration that is valid but probably unintended.
func (c Config) Warn(logger *zap.SugaredLogger) {
	if c.CatalogFallback {
		logger.Warn("RENO_CATALOG_FALLBACK is enabled; an unreadable price list will start with empty rates")
	}
	if !c.IsDev() && c.LogLevel == "debug" {
		logger.Warnw("debug logging outside dev", "env", c.Env)
	}
}
