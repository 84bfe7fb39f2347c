// Package config provides configuration for the game service.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DevJWTSecret is the JWT_SECRET default. It is only fit for local development.
const DevJWTSecret = "dev-secret-change-me"

// Config holds the game service configuration.
type Config struct {
	// Server settings
	HTTPPort     int `env:"HTTP_PORT" envDefault:"8080"`
	InternalPort int `env:"INTERNAL_PORT" envDefault:"8081"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:treeleaf.db?_txlock=immediate&_busy_timeout=5000"`

	// Identity
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	// Purchase policy (rego); empty uses the built-in policy
	PolicyFile string `env:"POLICY_FILE"`

	// Game tunables
	WinThreshold     int           `env:"WIN_THRESHOLD" envDefault:"5"`
	WinProbability   float64       `env:"WIN_PROBABILITY" envDefault:"0.45"`
	PrizeCodeLength  int           `env:"PRIZE_CODE_LENGTH" envDefault:"12"`
	PrizeCodeRetries int           `env:"PRIZE_CODE_RETRIES" envDefault:"5"`
	PrizeCodeTTL     time.Duration `env:"PRIZE_CODE_TTL" envDefault:"0s"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"0s"`
	RNGSeed          int64         `env:"RNG_SEED" envDefault:"0"`

	// Background work and limits
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	PlayRateLimit float64       `env:"PLAY_RATE_LIMIT" envDefault:"20"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration produced by an empty environment.
func Default() *Config {
	cfg := &Config{}
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// Validate rejects game tunables the engine cannot honour.
func (c *Config) Validate() error {
	if c.WinThreshold < 1 {
		return fmt.Errorf("WIN_THRESHOLD must be >= 1, got %d", c.WinThreshold)
	}
	if c.WinProbability <= 0 || c.WinProbability >= 1 {
		return fmt.Errorf("WIN_PROBABILITY must be in (0,1), got %v", c.WinProbability)
	}
	if c.PrizeCodeLength < 6 {
		return fmt.Errorf("PRIZE_CODE_LENGTH must be >= 6, got %d", c.PrizeCodeLength)
	}
	if c.PrizeCodeRetries < 1 {
		return fmt.Errorf("PRIZE_CODE_RETRIES must be >= 1, got %d", c.PrizeCodeRetries)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return nil
}
