package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Poll      PollConfig      `yaml:"poll"`
	Log       LogConfig       `yaml:"log"`
	Users     []User          `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port" env:"POLICYFORGE_PORT"`
}

type EngineConfig struct {
	// BaseURL may legitimately be unset: the gateway boots anyway and
	// reports not_configured on every upstream call.
	BaseURL             string `yaml:"base_url" env:"POLICYFORGE_ENGINE_URL"`
	Environment         string `yaml:"environment" env:"POLICYFORGE_ENVIRONMENT"`
	TimeoutMs           int    `yaml:"timeout_ms" env:"POLICYFORGE_ENGINE_TIMEOUT_MS"`
	DegradedThresholdMs int    `yaml:"degraded_threshold_ms" env:"POLICYFORGE_ENGINE_DEGRADED_THRESHOLD_MS"`
}

type RateLimitConfig struct {
	Limit    int `yaml:"limit" env:"POLICYFORGE_RATE_LIMIT"`
	WindowMs int `yaml:"window_ms" env:"POLICYFORGE_RATE_LIMIT_WINDOW_MS"`
}

type RedisConfig struct {
	// When Addr is set the rate limiter counts in Redis instead of process
	// memory, so replicas share one window per client.
	Addr     string `yaml:"addr" env:"POLICYFORGE_REDIS_ADDR"`
	Password string `yaml:"password" env:"POLICYFORGE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"POLICYFORGE_REDIS_DB"`
}

type AuthConfig struct {
	Enabled          bool   `yaml:"enabled" env:"POLICYFORGE_AUTH_ENABLED"`
	JWTSecret        string `yaml:"jwt_secret" env:"POLICYFORGE_JWT_SECRET"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms" env:"POLICYFORGE_POLL_INTERVAL_MS"`
	BudgetMs   int `yaml:"budget_ms" env:"POLICYFORGE_POLL_BUDGET_MS"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"POLICYFORGE_LOG_LEVEL"`
	Format string `yaml:"format" env:"POLICYFORGE_LOG_FORMAT"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

var environments = map[string]struct{}{"dev": {}, "qa": {}, "prod": {}}

// Load reads the YAML file at path (optional: a missing file means env-only
// configuration), overlays environment variables, and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Engine.TimeoutMs == 0 {
		cfg.Engine.TimeoutMs = 8000
	}
	if cfg.Engine.DegradedThresholdMs == 0 {
		cfg.Engine.DegradedThresholdMs = 1200
	}
	if cfg.RateLimit.Limit == 0 {
		cfg.RateLimit.Limit = 60
	}
	if cfg.RateLimit.WindowMs == 0 {
		cfg.RateLimit.WindowMs = 60000
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = 2000
	}
	if cfg.Poll.BudgetMs == 0 {
		cfg.Poll.BudgetMs = 60000
	}

	if tag := strings.TrimSpace(cfg.Engine.Environment); tag != "" {
		if _, ok := environments[strings.ToLower(tag)]; !ok {
			return nil, fmt.Errorf("engine.environment must be one of dev, qa, prod (got %q)", tag)
		}
		cfg.Engine.Environment = strings.ToLower(tag)
	}

	return &cfg, nil
}

// ResolveBaseURL validates the configured engine base URL and returns it
// without a trailing slash. An unset or malformed URL is a not_configured
// condition for callers, never a crash.
func (c *EngineConfig) ResolveBaseURL() (string, error) {
	raw := strings.TrimSpace(c.BaseURL)
	if raw == "" {
		return "", fmt.Errorf("engine base URL is not set")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("engine base URL is invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("engine base URL must use http or https (got %q)", parsed.Scheme)
	}

	return strings.TrimSuffix(raw, "/"), nil
}

// Timeout returns the upstream call budget.
func (c *EngineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DegradedThreshold returns the latency above which a reachable engine is
// reported as degraded.
func (c *EngineConfig) DegradedThreshold() time.Duration {
	return time.Duration(c.DegradedThresholdMs) * time.Millisecond
}

// Window returns the fixed rate-limit window size.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

// FindUser finds a login user by username.
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
