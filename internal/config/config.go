// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	GRPCPort    string `envconfig:"GRPC_PORT" default:"9090"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"./data/launchpad.db"`
	JWTSecret   string `envconfig:"JWT_SECRET"`
	FrontendURL string `envconfig:"FRONTEND_URL"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"` // comma-separated

	// Gamification
	DefaultTimezone         string        `envconfig:"DEFAULT_TIMEZONE" default:"UTC"`
	AchievementUnlockWindow time.Duration `envconfig:"ACHIEVEMENT_UNLOCK_WINDOW" default:"10s"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	SeedCatalog bool   `envconfig:"SEED_CATALOG" default:"true"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AchievementUnlockWindow <= 0 {
		return fmt.Errorf("ACHIEVEMENT_UNLOCK_WINDOW must be > 0")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	return nil
}

// AllowedOrigins splits CORSOrigins, adding FrontendURL when set.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if c.FrontendURL != "" {
		out = append(out, strings.TrimRight(c.FrontendURL, "/"))
	}
	return out
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}
