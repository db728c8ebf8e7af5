package config

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "ssw-alert-watcher/pkg/errors"
	"ssw-alert-watcher/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Watcher.ErrorRateThreshold)
	assert.Equal(t, 200, cfg.Watcher.WindowSize)
	assert.Equal(t, 300, cfg.Watcher.AlertCooldownSec)
	assert.False(t, cfg.Watcher.MaintenanceMode)
	assert.Equal(t, 50, cfg.Watcher.MinSamples)
	assert.Equal(t, "/var/log/nginx/access.log", cfg.Source.Path)
	assert.True(t, cfg.Sinks.Log.Enabled)
	assert.False(t, cfg.Sinks.Slack.Enabled)
	require.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_YAMLKeepsExplicitZeros(t *testing.T) {
	path := writeConfig(t, `
watcher:
  error_rate_threshold: 0
  alert_cooldown_sec: 0
  window_size: 10
source:
  path: /tmp/access.log
  from_beginning: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Watcher.ErrorRateThreshold)
	assert.Equal(t, 0, cfg.Watcher.AlertCooldownSec)
	assert.Equal(t, 10, cfg.Watcher.WindowSize)
	assert.Equal(t, 50, cfg.Watcher.MinSamples)
	assert.Equal(t, "/tmp/access.log", cfg.Source.Path)
	assert.True(t, cfg.Source.FromBeginning)
	assert.Equal(t, 8401, cfg.Server.Port)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "watcher: [unclosed")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigParse))
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ERROR_RATE_THRESHOLD", "5.5")
	t.Setenv("WINDOW_SIZE", "100")
	t.Setenv("ALERT_COOLDOWN_SEC", "60")
	t.Setenv("MAINTENANCE_MODE", "TRUE")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T000/B000/XXXX")
	t.Setenv("LOG_PATH", "-")
	t.Setenv("API_PORT", "9401")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 5.5, cfg.Watcher.ErrorRateThreshold)
	assert.Equal(t, 100, cfg.Watcher.WindowSize)
	assert.Equal(t, 60, cfg.Watcher.AlertCooldownSec)
	assert.True(t, cfg.Watcher.MaintenanceMode)
	assert.True(t, cfg.Sinks.Slack.Enabled)
	assert.Equal(t, "stdin", cfg.Source.Type)
	assert.Equal(t, 9401, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	require.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "watcher:\n  window_size: 500\n")
	t.Setenv("WINDOW_SIZE", "20")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Watcher.WindowSize)
}

func TestLoadConfig_NonNumericEnvIsFatal(t *testing.T) {
	for _, key := range []string{"ERROR_RATE_THRESHOLD", "WINDOW_SIZE", "ALERT_COOLDOWN_SEC"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "lots")

			_, err := LoadConfig("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)

			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.True(t, appErr.IsCritical())
		})
	}
}

func TestLoadConfig_MaintenanceModeValues(t *testing.T) {
	for value, want := range map[string]bool{"true": true, "True": true, "TRUE": true, "1": false, "false": false, "yes": false} {
		t.Setenv("MAINTENANCE_MODE", value)
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, want, cfg.Watcher.MaintenanceMode, value)
	}
}

func TestLoadConfig_PlaceholderWebhookDisablesSlack(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", SlackPlaceholderURL)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.False(t, cfg.Sinks.Slack.Enabled)
	assert.Empty(t, cfg.Sinks.Slack.WebhookURL)
}

func TestValidateConfig_Watcher(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *types.WatcherConfig)
	}{
		{"negative threshold", func(w *types.WatcherConfig) { w.ErrorRateThreshold = -1 }},
		{"zero window", func(w *types.WatcherConfig) { w.WindowSize = 0 }},
		{"negative cooldown", func(w *types.WatcherConfig) { w.AlertCooldownSec = -5 }},
		{"zero min samples", func(w *types.WatcherConfig) { w.MinSamples = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Watcher)

			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigValidation))
		})
	}
}

func TestValidateConfig_Boundaries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watcher.ErrorRateThreshold = 0
	cfg.Watcher.WindowSize = 1
	cfg.Watcher.AlertCooldownSec = 0
	assert.NoError(t, ValidateConfig(cfg))
}

func TestValidateConfig_Other(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *types.Config)
	}{
		{"bad log level", func(c *types.Config) { c.App.LogLevel = "loud" }},
		{"bad log format", func(c *types.Config) { c.App.LogFormat = "xml" }},
		{"bad api port", func(c *types.Config) { c.Server.Port = 70000 }},
		{"bad metrics port", func(c *types.Config) { c.Metrics.Port = -1 }},
		{"bad source type", func(c *types.Config) { c.Source.Type = "syslog" }},
		{"empty file path", func(c *types.Config) { c.Source.Path = "" }},
		{"bad slack timeout", func(c *types.Config) { c.Sinks.Slack.Timeout = "fast" }},
		{"kafka without brokers", func(c *types.Config) { c.Sinks.Kafka.Enabled = true }},
		{"bad exporter", func(c *types.Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }},
		{"bad sample rate", func(c *types.Config) { c.Tracing.Enabled = true; c.Tracing.SampleRate = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, ValidateConfig(cfg))
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/watcher.yaml", ResolveConfigPath("/etc/watcher.yaml"))

	t.Setenv("WATCHER_CONFIG_FILE", "/from/env.yaml")
	assert.Equal(t, "/from/env.yaml", ResolveConfigPath(""))

	t.Setenv("WATCHER_CONFIG_FILE", "")
	assert.Equal(t, DefaultConfigFile, ResolveConfigPath(""))
}

func TestRedact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.Slack.WebhookURL = "https://hooks.slack.com/services/T/B/secret"
	cfg.Sinks.Kafka.Auth.Password = "hunter2"

	out := Redact(cfg)
	assert.Equal(t, "[REDACTED]", out.Sinks.Slack.WebhookURL)
	assert.Equal(t, "[REDACTED]", out.Sinks.Kafka.Auth.Password)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/secret", cfg.Sinks.Slack.WebhookURL)
}
