package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with defaults → YAML file → environment
// variable precedence.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("INCIDENTFLOW").
//	    Load()
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a loader with no file and the default env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "INCIDENTFLOW"}
}

// WithConfigPath sets the YAML file to load. An empty path skips the file
// layer.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load produces the effective configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", l.configPath, err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from <PREFIX>_SECTION_FIELD variables.
func (l *Loader) applyEnv(cfg *Config) error {
	setString := func(key string, target *string) {
		if v, ok := l.lookup(key); ok {
			*target = v
		}
	}
	setInt := func(key string, target *int) error {
		v, ok := l.lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %q", l.envKey(key), v)
		}
		*target = n
		return nil
	}
	setDuration := func(key string, target *time.Duration) error {
		v, ok := l.lookup(key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %q", l.envKey(key), v)
		}
		*target = d
		return nil
	}

	setString("SERVER_HTTP_ADDR", &cfg.Server.HTTPAddr)
	setString("SERVER_METRICS_ADDR", &cfg.Server.MetricsAddr)
	if err := setDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout); err != nil {
		return err
	}
	if err := setDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout); err != nil {
		return err
	}
	if err := setDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout); err != nil {
		return err
	}

	setString("STORE_DRIVER", &cfg.Store.Driver)
	setString("STORE_SQLITE_PATH", &cfg.Store.SQLitePath)
	setString("STORE_REDIS_ADDR", &cfg.Store.Redis.Addr)
	setString("STORE_REDIS_PASSWORD", &cfg.Store.Redis.Password)
	if err := setInt("STORE_REDIS_DB", &cfg.Store.Redis.DB); err != nil {
		return err
	}
	if err := setInt("STORE_REDIS_POOL_SIZE", &cfg.Store.Redis.PoolSize); err != nil {
		return err
	}

	setString("LLM_API_KEY", &cfg.LLM.APIKey)
	setString("LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("LLM_MODEL", &cfg.LLM.Model)
	if err := setDuration("LLM_TIMEOUT", &cfg.LLM.Timeout); err != nil {
		return err
	}

	setString("SLACK_BOT_TOKEN", &cfg.Slack.BotToken)
	setString("SLACK_SIGNING_SECRET", &cfg.Slack.SigningSecret)
	setString("SLACK_DEFAULT_CHANNEL", &cfg.Slack.DefaultChannel)
	l.applyChannelEnv(cfg)

	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)

	return nil
}

// applyChannelEnv reads per-category channel overrides, e.g.
// INCIDENTFLOW_SLACK_CHANNEL_APP=C0123.
func (l *Loader) applyChannelEnv(cfg *Config) {
	for _, category := range []string{"APP", "WEBSITE", "PASSENGER", "CHAUFFEUR", "SERVICE_PROVIDER"} {
		if v, ok := l.lookup("SLACK_CHANNEL_" + category); ok {
			if cfg.Slack.Channels == nil {
				cfg.Slack.Channels = map[string]string{}
			}
			cfg.Slack.Channels[category] = v
		}
	}
}

func (l *Loader) envKey(key string) string {
	return l.envPrefix + "_" + strings.ToUpper(key)
}

func (l *Loader) lookup(key string) (string, bool) {
	return os.LookupEnv(l.envKey(key))
}
