package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "ssw-alert-watcher/pkg/errors"
	"ssw-alert-watcher/pkg/types"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// DefaultConfigFile is used when neither -config nor WATCHER_CONFIG_FILE is set.
const DefaultConfigFile = "/app/configs/config.yaml"

// SlackPlaceholderURL is the sample webhook shipped in docs; it means "unset".
const SlackPlaceholderURL = "https://hooks.slack.com/services/YOUR/WEBHOOK/URL"

// ResolveConfigPath picks the configuration file: explicit flag, then the
// WATCHER_CONFIG_FILE environment variable, then DefaultConfigFile.
func ResolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnvString("WATCHER_CONFIG_FILE", DefaultConfigFile)
}

// DefaultConfig returns the built-in configuration. YAML is decoded on top
// of it, so keys absent from the file keep these values while explicit
// zeros (cooldown 0, threshold 0) are preserved.
func DefaultConfig() *types.Config {
	return &types.Config{
		App: types.AppConfig{
			Name:        "ssw-alert-watcher",
			Version:     "v0.1.0",
			Environment: "production",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Server: types.ServerConfig{
			Enabled:      true,
			Host:         "0.0.0.0",
			Port:         8401,
			ReadTimeout:  "10s",
			WriteTimeout: "10s",
		},
		Metrics: types.MetricsConfig{
			Enabled: true,
			Port:    8001,
			Path:    "/metrics",
		},
		Watcher: types.WatcherConfig{
			ErrorRateThreshold: 2.0,
			WindowSize:         200,
			AlertCooldownSec:   300,
			MaintenanceMode:    false,
			MinSamples:         50,
		},
		Source: types.SourceConfig{
			Type: "file",
			Path: "/var/log/nginx/access.log",
		},
		Sinks: types.SinksConfig{
			Slack: types.SlackSinkConfig{
				Timeout:   "10s",
				QueueSize: 100,
			},
			Log: types.LogSinkConfig{Enabled: true},
			Kafka: types.KafkaSinkConfig{
				Topic:        "watcher-alerts",
				Timeout:      "10s",
				RequiredAcks: 1,
				Compression:  "none",
				QueueSize:    100,
			},
		},
		HotReload: types.HotReloadConfig{
			Enabled:          false,
			DebounceInterval: "2s",
		},
		Tracing: types.TracingConfig{
			Enabled:     false,
			ServiceName: "ssw-alert-watcher",
			Exporter:    "otlp",
			Endpoint:    "http://localhost:4318",
			SampleRate:  1.0,
		},
	}
}

// LoadConfig carrega a configuração a partir de arquivo YAML e variáveis de ambiente.
//
// A missing file is not an error: the watcher runs from defaults and the
// environment alone. A file that exists but cannot be parsed, or an
// environment variable that is not a valid number, is fatal.
func LoadConfig(configFile string) (*types.Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		if err := loadConfigFile(configFile, config); err != nil {
			if !apperrors.HasCode(err, apperrors.CodeConfigNotFound) {
				return nil, err
			}
			fmt.Printf("Warning: config file %s not found, using defaults and environment\n", configFile)
		}
	}

	applyDefaults(config)
	if err := applyEnvironmentOverrides(config); err != nil {
		return nil, err
	}
	normalizeSlack(config)

	return config, nil
}

// loadConfigFile carrega configuração de um arquivo YAML
func loadConfigFile(filename string, config *types.Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.New(apperrors.CodeConfigNotFound, "config", "load", "config file not found").
				WithMetadata("path", filename)
		}
		return apperrors.NewCritical(apperrors.CodeConfigParse, "config", "load", "failed to read config file").
			Wrap(err).
			WithMetadata("path", filename)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return apperrors.NewCritical(apperrors.CodeConfigParse, "config", "load", "failed to parse config file").
			Wrap(err).
			WithMetadata("path", filename)
	}
	return nil
}

// applyDefaults preenche campos textuais deixados vazios pelo YAML
func applyDefaults(config *types.Config) {
	defaults := DefaultConfig()

	if config.App.Name == "" {
		config.App.Name = defaults.App.Name
	}
	if config.App.LogLevel == "" {
		config.App.LogLevel = defaults.App.LogLevel
	}
	if config.App.LogFormat == "" {
		config.App.LogFormat = defaults.App.LogFormat
	}
	if config.Server.Host == "" {
		config.Server.Host = defaults.Server.Host
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Metrics.Port == 0 {
		config.Metrics.Port = defaults.Metrics.Port
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = defaults.Metrics.Path
	}
	if config.Watcher.MinSamples == 0 {
		config.Watcher.MinSamples = defaults.Watcher.MinSamples
	}
	if config.Source.Type == "" {
		config.Source.Type = defaults.Source.Type
	}
	if config.Source.Type == "file" && config.Source.Path == "" {
		config.Source.Path = defaults.Source.Path
	}
	if config.Sinks.Slack.Timeout == "" {
		config.Sinks.Slack.Timeout = defaults.Sinks.Slack.Timeout
	}
	if config.Sinks.Kafka.Timeout == "" {
		config.Sinks.Kafka.Timeout = defaults.Sinks.Kafka.Timeout
	}
	if config.HotReload.DebounceInterval == "" {
		config.HotReload.DebounceInterval = defaults.HotReload.DebounceInterval
	}
	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = config.App.Name
	}
}

// applyEnvironmentOverrides aplica sobrescritas de variáveis de ambiente
func applyEnvironmentOverrides(config *types.Config) error {
	// Watcher overrides: valores inválidos abortam a inicialização
	if value, ok := lookupEnv("ERROR_RATE_THRESHOLD"); ok {
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return envError("ERROR_RATE_THRESHOLD", value, "must be a number", err)
		}
		config.Watcher.ErrorRateThreshold = threshold
	}
	if value, ok := lookupEnv("WINDOW_SIZE"); ok {
		size, err := strconv.Atoi(value)
		if err != nil {
			return envError("WINDOW_SIZE", value, "must be an integer", err)
		}
		config.Watcher.WindowSize = size
	}
	if value, ok := lookupEnv("ALERT_COOLDOWN_SEC"); ok {
		cooldown, err := strconv.Atoi(value)
		if err != nil {
			return envError("ALERT_COOLDOWN_SEC", value, "must be an integer", err)
		}
		config.Watcher.AlertCooldownSec = cooldown
	}
	if value, ok := lookupEnv("MAINTENANCE_MODE"); ok {
		// somente "true" (sem diferenciar maiúsculas) liga o modo
		config.Watcher.MaintenanceMode = strings.EqualFold(value, "true")
	}

	// Source overrides
	if path := getEnvString("LOG_PATH", ""); path != "" {
		config.Source.Path = path
		if path == "-" {
			config.Source.Type = "stdin"
		} else {
			config.Source.Type = "file"
		}
	}

	// Sinks overrides
	if url := getEnvString("SLACK_WEBHOOK_URL", ""); url != "" {
		config.Sinks.Slack.WebhookURL = url
		config.Sinks.Slack.Enabled = true
	}

	// Server/API overrides
	if port := getEnvInt("API_PORT", 0); port != 0 {
		config.Server.Port = port
	}
	if port := getEnvInt("METRICS_PORT", 0); port != 0 {
		config.Metrics.Port = port
	}

	// Logging overrides
	if level := getEnvString("LOG_LEVEL", ""); level != "" {
		config.App.LogLevel = level
	}
	if format := getEnvString("LOG_FORMAT", ""); format != "" {
		config.App.LogFormat = format
	}
	return nil
}

// normalizeSlack turns the placeholder webhook into "not configured".
func normalizeSlack(config *types.Config) {
	if strings.TrimSpace(config.Sinks.Slack.WebhookURL) == SlackPlaceholderURL {
		config.Sinks.Slack.WebhookURL = ""
	}
	if config.Sinks.Slack.WebhookURL == "" {
		config.Sinks.Slack.Enabled = false
	}
}

func envError(key, value, reason string, cause error) error {
	return apperrors.ConfigError("env", fmt.Sprintf("%s=%q %s", key, value, reason)).
		Wrap(cause).
		WithMetadata("variable", key)
}

// Funções auxiliares para variáveis de ambiente

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ValidateConfig valida a configuração
func ValidateConfig(config *types.Config) error {
	w := config.Watcher
	if math.IsNaN(w.ErrorRateThreshold) || math.IsInf(w.ErrorRateThreshold, 0) || w.ErrorRateThreshold < 0 {
		return validationError("watcher.error_rate_threshold must be a finite number >= 0, got %v", w.ErrorRateThreshold)
	}
	if w.WindowSize < 1 {
		return validationError("watcher.window_size must be >= 1, got %d", w.WindowSize)
	}
	if w.AlertCooldownSec < 0 {
		return validationError("watcher.alert_cooldown_sec must be >= 0, got %d", w.AlertCooldownSec)
	}
	if w.MinSamples < 1 {
		return validationError("watcher.min_samples must be >= 1, got %d", w.MinSamples)
	}

	if _, err := logrus.ParseLevel(config.App.LogLevel); err != nil {
		return validationError("invalid log level %q", config.App.LogLevel)
	}
	if config.App.LogFormat != "json" && config.App.LogFormat != "text" {
		return validationError("invalid log format %q (json or text)", config.App.LogFormat)
	}

	if config.Server.Enabled && (config.Server.Port <= 0 || config.Server.Port > 65535) {
		return validationError("invalid API port: %d", config.Server.Port)
	}
	if config.Metrics.Enabled && (config.Metrics.Port <= 0 || config.Metrics.Port > 65535) {
		return validationError("invalid metrics port: %d", config.Metrics.Port)
	}
	for name, value := range map[string]string{
		"server.read_timeout":          config.Server.ReadTimeout,
		"server.write_timeout":         config.Server.WriteTimeout,
		"sinks.slack.timeout":          config.Sinks.Slack.Timeout,
		"sinks.kafka.timeout":          config.Sinks.Kafka.Timeout,
		"hot_reload.debounce_interval": config.HotReload.DebounceInterval,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return validationError("%s: invalid duration %q", name, value)
		}
	}

	switch config.Source.Type {
	case "file":
		if config.Source.Path == "" {
			return validationError("source.path cannot be empty for a file source")
		}
	case "stdin":
	default:
		return validationError("invalid source type %q (file or stdin)", config.Source.Type)
	}

	if config.Sinks.Kafka.Enabled {
		if len(config.Sinks.Kafka.Brokers) == 0 {
			return validationError("kafka brokers cannot be empty when kafka sink is enabled")
		}
		if config.Sinks.Kafka.Topic == "" {
			return validationError("kafka topic cannot be empty when kafka sink is enabled")
		}
	}

	if config.Tracing.Enabled {
		switch config.Tracing.Exporter {
		case "otlp", "jaeger":
		default:
			return validationError("invalid tracing exporter %q (otlp or jaeger)", config.Tracing.Exporter)
		}
		if config.Tracing.SampleRate < 0 || config.Tracing.SampleRate > 1 {
			return validationError("tracing.sample_rate must be within [0, 1], got %v", config.Tracing.SampleRate)
		}
	}

	return nil
}

func validationError(format string, args ...interface{}) error {
	return apperrors.NewCritical(apperrors.CodeConfigValidation, "config", "validate", fmt.Sprintf(format, args...))
}

// Redact returns a copy of config that is safe to expose over HTTP.
func Redact(config *types.Config) types.Config {
	out := *config
	out.Sinks.Kafka.Brokers = append([]string(nil), config.Sinks.Kafka.Brokers...)
	if out.Sinks.Slack.WebhookURL != "" {
		out.Sinks.Slack.WebhookURL = "[REDACTED]"
	}
	if out.Sinks.Kafka.Auth.Password != "" {
		out.Sinks.Kafka.Auth.Password = "[REDACTED]"
	}
	return out
}
