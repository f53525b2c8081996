package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/lifecycle_test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, "us-east-1", cfg.SES.Region)
	assert.Equal(t, 50, cfg.Automation.BatchLimit)
	assert.Equal(t, 60, cfg.Automation.PollIntervalSeconds)
	assert.Equal(t, 1000, cfg.Segments.ScanLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
database:
  url: postgres://localhost/lifecycle
  max_open_conns: 25
redis:
  addr: localhost:6379
automation:
  batch_limit: 20
  poll_interval_seconds: 30
segments:
  scan_limit: 500
cron:
  secret: topsecret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 20, cfg.Automation.BatchLimit)
	assert.Equal(t, 500, cfg.Segments.ScanLimit)
	assert.Equal(t, "topsecret", cfg.Cron.Secret)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/from_file
cron:
  secret: file-secret
`)

	t.Setenv("DATABASE_URL", "postgres://prod-host/lifecycle")
	t.Setenv("CRON_SECRET", "env-secret")
	t.Setenv("LINE_CHANNEL_TOKEN", "line-token")
	t.Setenv("SERVER_PORT", "3001")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://prod-host/lifecycle", cfg.Database.URL)
	assert.Equal(t, "env-secret", cfg.Cron.Secret)
	assert.Equal(t, "line-token", cfg.Line.ChannelToken)
	assert.Equal(t, 3001, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}
