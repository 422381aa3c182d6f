package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "checkpoints.sqlite", cfg.Store.SQLitePath)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http_addr: ":9000"
store:
  driver: redis
  redis:
    addr: redis.internal:6379
    db: 2
llm:
  api_key: sk-test
  model: gpt-4o-mini
slack:
  bot_token: xoxb-abc
  signing_secret: shhh
  default_channel: C-triage
  channels:
    APP: C-app
    WEBSITE: C-web
log:
  level: debug
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis.internal:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "C-app", cfg.Slack.Channels["APP"])
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().WithConfigPath("/does/not/exist.yaml").Load()
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "server: [not a map")
	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
store:
  driver: sqlite
llm:
  api_key: from-file
`)

	t.Setenv("INCIDENTFLOW_STORE_DRIVER", "memory")
	t.Setenv("INCIDENTFLOW_LLM_API_KEY", "from-env")
	t.Setenv("INCIDENTFLOW_SERVER_READ_TIMEOUT", "45s")
	t.Setenv("INCIDENTFLOW_STORE_REDIS_DB", "3")
	t.Setenv("INCIDENTFLOW_SLACK_CHANNEL_APP", "C-env-app")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, "C-env-app", cfg.Slack.Channels["APP"])
}

func TestEnvInvalidValues(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("INCIDENTFLOW_LLM_TIMEOUT", "soon")
		_, err := NewLoader().Load()
		assert.Error(t, err)
	})

	t.Run("bad integer", func(t *testing.T) {
		t.Setenv("INCIDENTFLOW_STORE_REDIS_DB", "two")
		_, err := NewLoader().Load()
		assert.Error(t, err)
	})
}

func TestEnvPrefix(t *testing.T) {
	t.Setenv("CUSTOM_LOG_LEVEL", "warn")
	cfg, err := NewLoader().WithEnvPrefix("CUSTOM").Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.LLM.APIKey = "sk-test"
	require.NoError(t, valid.Validate())

	t.Run("unknown driver", func(t *testing.T) {
		cfg := Default()
		cfg.LLM.APIKey = "sk-test"
		cfg.Store.Driver = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("sqlite without path", func(t *testing.T) {
		cfg := Default()
		cfg.LLM.APIKey = "sk-test"
		cfg.Store.SQLitePath = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := Default()
		assert.Error(t, cfg.Validate())
	})

	t.Run("bot token without signing secret", func(t *testing.T) {
		cfg := Default()
		cfg.LLM.APIKey = "sk-test"
		cfg.Slack.BotToken = "xoxb-abc"
		assert.Error(t, cfg.Validate())
	})
}
