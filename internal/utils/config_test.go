package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"log-sentinel/internal/rules/builtin"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_YAMLWithDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
source:
  path: /var/log/app.log
  start_at_end: false
storage:
  driver: memory
feed:
  log_capacity: 50
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/log/app.log", cfg.Source.Path)
	assert.False(t, cfg.StartAtEnd())
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 50, cfg.Feed.LogCapacity)
	assert.Equal(t, 100, cfg.Feed.AlertCapacity)
	assert.Equal(t, ":8081", cfg.Application.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 5*time.Second, cfg.RetryDelay())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.True(t, cfg.HasChannel(ChannelLog))
	assert.True(t, cfg.HasChannel(ChannelMetrics))
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"application": {"listen_addr": ":9000"}, "alerting": {"channels": ["log"]}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Application.ListenAddr)
	assert.True(t, cfg.StartAtEnd())
	assert.False(t, cfg.HasChannel(ChannelMetrics))
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "bad.yaml", "source: [\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "driver.yaml", "storage:\n  driver: oracle\n"))
	assert.ErrorContains(t, err, "unsupported storage driver")

	_, err = LoadConfig(writeConfig(t, "pg.yaml", "storage:\n  driver: postgres\n"))
	assert.ErrorContains(t, err, "dsn is required")

	_, err = LoadConfig(writeConfig(t, "channel.yaml", "alerting:\n  channels: [telegram]\n"))
	assert.ErrorContains(t, err, "unknown alert channel")
}

func TestLoadConfigOrDefault(t *testing.T) {
	cfg, loaded, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, "/data/siem.db", cfg.Storage.DSN)

	_, _, err = LoadConfigOrDefault(writeConfig(t, "bad.yaml", "source: [\n"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogPath:  "/tmp/app.log",
		EnvPort:     "9090",
		EnvDatabase: "/tmp/siem.db",
		EnvDBDriver: "SQLite",
	}
	cfg := GetDefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/tmp/app.log", cfg.Source.Path)
	assert.Equal(t, ":9090", cfg.Application.ListenAddr)
	assert.Equal(t, "/tmp/siem.db", cfg.Storage.DSN)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv(EnvPort, "7000")
	cfg, err := LoadConfig(writeConfig(t, "config.yaml", "application:\n  listen_addr: \":8000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Application.ListenAddr)
}

func TestLoadRuleCatalog(t *testing.T) {
	cfg := GetDefaultConfig()
	defs, from, err := LoadRuleCatalog(cfg)
	require.NoError(t, err)
	assert.Equal(t, "builtin", from)
	assert.Len(t, defs, len(builtin.Rules()))

	inline, err := LoadConfig(writeConfig(t, "inline.yaml", `
storage:
  driver: memory
rules:
  - id: ONLY
    name: Only rule
    severity: low
    pattern: only
`))
	require.NoError(t, err)
	defs, from, err = LoadRuleCatalog(inline)
	require.NoError(t, err)
	assert.Equal(t, "config", from)
	require.Len(t, defs, 1)
	assert.Equal(t, "ONLY", defs[0].ID)

	rulesFile := writeConfig(t, "rules.yaml", `
rules:
  - id: FROM_FILE
    severity: high
    pattern: x
`)
	inline.Detection.RulesFile = rulesFile
	defs, from, err = LoadRuleCatalog(inline)
	require.NoError(t, err)
	assert.Equal(t, rulesFile, from)
	assert.Equal(t, "FROM_FILE", defs[0].ID)

	inline.Detection.RulesFile = ""
	inline.Rules[0].Severity = "urgent"
	_, _, err = LoadRuleCatalog(inline)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.WarnLevel, NewLogger("WARNING").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("").GetLevel())
}

func TestNewLoggerFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sentinel.log")
	logger, closer, err := NewLoggerFromConfig(LoggingConfig{Level: "INFO", Format: "text", FilePath: path})
	require.NoError(t, err)

	logger.Info("hello from the test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test")
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
