// Package config provides the incidentflow configuration model and a
// loader with defaults → YAML file → environment variable precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	// Server holds the HTTP surface configuration.
	Server ServerConfig `yaml:"server"`

	// Store selects and configures the checkpoint store.
	Store StoreConfig `yaml:"store"`

	// LLM configures the classifier/advisor provider.
	LLM LLMConfig `yaml:"llm"`

	// Slack configures the notifier and inbound action verification.
	Slack SlackConfig `yaml:"slack"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	// Driver is "sqlite", "redis", or "memory".
	Driver string `yaml:"driver"`
	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `yaml:"sqlite_path"`
	// Redis configures the redis driver.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LLMConfig holds provider settings for the classifier and advisor.
type LLMConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// SlackConfig holds notifier and webhook verification settings.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
	// Channels maps issue categories (APP, WEBSITE, ...) to channel ids.
	Channels map[string]string `yaml:"channels"`
	// DefaultChannel receives notifications for unmapped categories.
	DefaultChannel string `yaml:"default_channel"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// Default returns the baseline configuration before file and environment
// overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "checkpoints.sqlite",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		LLM: LLMConfig{
			Model:   "gpt-4.1",
			Timeout: 60 * time.Second,
		},
		Slack: SlackConfig{
			Channels: map[string]string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the settings a running service cannot do without.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
		return fmt.Errorf("store.sqlite_path cannot be empty for the sqlite driver")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.Slack.BotToken != "" && c.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signing_secret is required when slack.bot_token is set")
	}
	return nil
}
