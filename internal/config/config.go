// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration for the identity server. Values are
// read from an optional YAML file first, then overridden by environment
// variables.
type Config struct {
	DBPath     string `yaml:"db_path"`     // path to the SQLite database file
	ListenAddr string `yaml:"listen_addr"` // HTTP listen address (default ":8080")
	LogLevel   string `yaml:"log_level"`   // debug, info, warn, error (default "info")
	Env        string `yaml:"env"`         // "development" (default) or "production"

	// JWTSecret signs session bearer tokens (HS256).
	JWTSecret string `yaml:"jwt_secret"`

	// SessionTTL bounds how long a login stays valid.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// LoginWindow is the per-host spacing between login attempts.
	LoginWindow time.Duration `yaml:"login_window"`

	// PBKDF2Iterations controls the password hashing cost.
	PBKDF2Iterations int `yaml:"pbkdf2_iterations"`

	// HTTP edge rate limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// SweepSchedule is the cron expression for the expired-session sweep.
	SweepSchedule string `yaml:"sweep_schedule"`

	// Warnings collects non-fatal findings from config loading. They are
	// logged by the caller once the logger exists.
	Warnings []string `yaml:"-"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

// IsProduction returns true when the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

const insecureDevSecret = "dev-secret-change-in-production"

// Load reads configuration from the YAML file at path (skipped when path is
// empty or the file does not exist) and then from environment variables.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
		switch {
		case os.IsNotExist(err):
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("config file %s not found, using environment only", path))
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	overlayEnv(cfg)
	applyDefaults(cfg)

	if cfg.IsProduction() {
		if cfg.JWTSecret == insecureDevSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func overlayEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.DBPath, "DB_PATH")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Env, "ENV")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.SweepSchedule, "SWEEP_SCHEDULE")

	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid SESSION_TTL %q ignored", v))
		}
	}
	if v := os.Getenv("LOGIN_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LoginWindow = d
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid LOGIN_WINDOW %q ignored", v))
		}
	}
	if v := os.Getenv("PBKDF2_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PBKDF2Iterations = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "idstore.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = insecureDevSecret
		cfg.Warnings = append(cfg.Warnings, "JWT_SECRET not set, using insecure default. Set JWT_SECRET in production!")
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.LoginWindow == 0 {
		cfg.LoginWindow = time.Second
	}
	if cfg.PBKDF2Iterations == 0 {
		cfg.PBKDF2Iterations = 600_000
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 5m"
	}
}
