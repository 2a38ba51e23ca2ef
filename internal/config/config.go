// Package config loads the server binary's settings: a .env file, then an
// optional YAML file named by SESSIONAUTH_CONFIG, then environment
// variables, each layer overriding the last.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/maccas-one/sessionauth"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// minSecretLength applies to AUTH_SECRET and RATE_LIMIT_COOKIE_SECRET.
const minSecretLength = 32

type Config struct {
	Server ServerConfig `yaml:"server"`

	// Storage
	DatabaseURL string `yaml:"database_url"`
	RedisAddr   string `yaml:"redis_addr"`

	// Secrets are accepted from YAML but normally come from the environment.
	AuthSecret            string `yaml:"auth_secret"`
	RateLimitCookieSecret string `yaml:"rate_limit_cookie_secret"`

	Legacy LegacyConfig `yaml:"legacy"`

	CookieSecure      bool `yaml:"cookie_secure"`
	RequireActivation bool `yaml:"require_activation"`

	LogLevel string        `yaml:"log_level"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Audit    bool          `yaml:"audit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LegacyConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled    bool `yaml:"enabled"`
	Histograms bool `yaml:"histograms"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Legacy: LegacyConfig{
			Timeout: 10 * time.Second,
		},
		CookieSecure:      true,
		RequireActivation: true,
		LogLevel:          "info",
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads .env (if present), the YAML file named by SESSIONAUTH_CONFIG
// (if set), and the environment, then validates the result.
func Load() (*Config, error) {
	// .env is optional outside development
	_ = godotenv.Load()

	cfg := Default()
	if path := getEnv("SESSIONAUTH_CONFIG", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("SESSIONAUTH_HTTP_ADDR", c.Server.Addr)
	c.Server.TrustProxy = getEnvBool("TRUST_PROXY", c.Server.TrustProxy)
	c.Server.ReadTimeout = getEnvDuration("SESSIONAUTH_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SESSIONAUTH_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SESSIONAUTH_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)

	c.AuthSecret = getEnv("AUTH_SECRET", c.AuthSecret)
	c.RateLimitCookieSecret = getEnv("RATE_LIMIT_COOKIE_SECRET", c.RateLimitCookieSecret)

	c.Legacy.BaseURL = getEnv("LEGACY_BASE_URL", c.Legacy.BaseURL)
	c.Legacy.Timeout = getEnvDuration("LEGACY_TIMEOUT", c.Legacy.Timeout)

	c.CookieSecure = getEnvBool("COOKIE_SECURE", c.CookieSecure)
	c.RequireActivation = getEnvBool("REQUIRE_ACTIVATION", c.RequireActivation)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Histograms = getEnvBool("METRICS_HISTOGRAMS", c.Metrics.Histograms)
	c.Audit = getEnvBool("AUDIT_ENABLED", c.Audit)
}

// Validate ensures all required configuration is present.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("SESSIONAUTH_HTTP_ADDR is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if len(c.AuthSecret) < minSecretLength {
		return fmt.Errorf("AUTH_SECRET must be at least %d characters", minSecretLength)
	}
	if len(c.RateLimitCookieSecret) < minSecretLength {
		return fmt.Errorf("RATE_LIMIT_COOKIE_SECRET must be at least %d characters", minSecretLength)
	}
	if c.RateLimitCookieSecret == c.AuthSecret {
		return errors.New("RATE_LIMIT_COOKIE_SECRET must differ from AUTH_SECRET")
	}
	if c.Legacy.BaseURL != "" && c.Legacy.Timeout <= 0 {
		return errors.New("LEGACY_TIMEOUT must be > 0 when LEGACY_BASE_URL is set")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Engine maps the settings onto an engine config built from the library
// defaults.
func (c *Config) Engine() sessionauth.Config {
	cfg := sessionauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.AuthSecret)
	cfg.Session.CookieSecure = c.CookieSecure
	cfg.RateLimit.CookieSecret = []byte(c.RateLimitCookieSecret)
	cfg.Legacy.BaseURL = c.Legacy.BaseURL
	if c.Legacy.Timeout > 0 {
		cfg.Legacy.Timeout = c.Legacy.Timeout
	}
	cfg.Account.RequireActivation = c.RequireActivation
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.Histograms
	cfg.Audit.Enabled = c.Audit
	return cfg
}

// Helper functions to read environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("90s") or whole seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
