package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "journal.db", cfg.Database.DSN)
	assert.Equal(t, 10000.0, cfg.Journal.TargetPositionSize)
	assert.Equal(t, 1000, cfg.Journal.MaxStatisticsTrades)
	assert.Equal(t, "@every 15m", cfg.Refresher.Schedule)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yml := `
logger:
  level: debug
  format: console
database:
  dsn: "file::memory:"
journal:
  target_position_size: 5000
quotes:
  base_url: https://quotes.example.com
  rate_limit: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o644))
	t.Setenv("JOURNAL_MAX_STATISTICS_TRADES", "250")

	cfg, err := LoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, 5000.0, cfg.Journal.TargetPositionSize)
	assert.Equal(t, 250, cfg.Journal.MaxStatisticsTrades)
	assert.Equal(t, "https://quotes.example.com", cfg.Quotes.BaseURL)
	assert.Equal(t, 1.0, cfg.Quotes.RateLimit)
	assert.Equal(t, 2, cfg.Quotes.RateLimitBurst)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("server: [port"), 0o644))

	_, err := LoadConfig(dir)

	assert.Error(t, err)
}
