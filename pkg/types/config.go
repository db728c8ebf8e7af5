// Package types - Configuration data structures
package types

// Config represents the complete application configuration structure.
//
// This is the root configuration object loaded from YAML and then
// overridden by environment variables. Watcher settings are read once at
// construction; only threshold, cooldown and maintenance mode may change
// at runtime through hot reload or the admin API.
type Config struct {
	// Core application settings
	App     AppConfig     `yaml:"app" json:"app"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Alerting engine settings
	Watcher WatcherConfig `yaml:"watcher" json:"watcher"`

	// Input line source
	Source SourceConfig `yaml:"source" json:"source"`

	// Output destination configurations
	Sinks SinksConfig `yaml:"sinks" json:"sinks"`

	// Operational features
	HotReload HotReloadConfig `yaml:"hot_reload" json:"hot_reload"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
}

// AppConfig contains core application settings.
type AppConfig struct {
	Name        string `yaml:"name" json:"name"`               // Application name for identification
	Version     string `yaml:"version" json:"version"`         // Application version
	Environment string `yaml:"environment" json:"environment"` // Deployment environment (dev, staging, prod)
	LogLevel    string `yaml:"log_level" json:"log_level"`     // Logging level (trace, debug, info, warn, error)
	LogFormat   string `yaml:"log_format" json:"log_format"`   // Log output format (json, text)
}

// ServerConfig contains admin HTTP server settings.
type ServerConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`             // Enable admin HTTP server
	Host         string `yaml:"host" json:"host"`                   // Server bind host
	Port         int    `yaml:"port" json:"port"`                   // Server bind port
	ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`   // HTTP read timeout
	WriteTimeout string `yaml:"write_timeout" json:"write_timeout"` // HTTP write timeout
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"` // Enable metrics server
	Port    int    `yaml:"port" json:"port"`       // Metrics server port
	Path    string `yaml:"path" json:"path"`       // Metrics endpoint path
}

// WatcherConfig contains the alerting engine settings.
type WatcherConfig struct {
	ErrorRateThreshold float64 `yaml:"error_rate_threshold" json:"error_rate_threshold"` // Percent of 5xx responses that triggers an alert
	WindowSize         int     `yaml:"window_size" json:"window_size"`                   // Number of recent status codes kept
	AlertCooldownSec   int     `yaml:"alert_cooldown_sec" json:"alert_cooldown_sec"`     // Minimum seconds between alerts of one kind
	MaintenanceMode    bool    `yaml:"maintenance_mode" json:"maintenance_mode"`         // Silence all alerts, keep tracking state
	MinSamples         int     `yaml:"min_samples" json:"min_samples"`                   // Samples required before the rate is evaluated
}

// SourceConfig contains the access log source settings.
type SourceConfig struct {
	Type          string `yaml:"type" json:"type"`                     // "file" or "stdin"
	Path          string `yaml:"path" json:"path"`                     // Access log path ("-" means stdin)
	FromBeginning bool   `yaml:"from_beginning" json:"from_beginning"` // Replay lines already in the file on startup
	Poll          bool   `yaml:"poll" json:"poll"`                     // Poll for changes instead of inotify
}

// SinksConfig groups alert sink configurations.
type SinksConfig struct {
	Slack SlackSinkConfig `yaml:"slack" json:"slack"`
	Log   LogSinkConfig   `yaml:"log" json:"log"`
	Kafka KafkaSinkConfig `yaml:"kafka" json:"kafka"`
}

// SlackSinkConfig contains Slack incoming webhook settings.
type SlackSinkConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
	Timeout    string `yaml:"timeout" json:"timeout"`       // Per-delivery timeout
	QueueSize  int    `yaml:"queue_size" json:"queue_size"` // Pending alerts before new ones are dropped
}

// LogSinkConfig controls the console/log alert sink.
type LogSinkConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// KafkaSinkConfig contains Kafka alert publishing settings.
type KafkaSinkConfig struct {
	Enabled      bool            `yaml:"enabled" json:"enabled"`
	Brokers      []string        `yaml:"brokers" json:"brokers"`
	Topic        string          `yaml:"topic" json:"topic"`
	Timeout      string          `yaml:"timeout" json:"timeout"`
	RequiredAcks int             `yaml:"required_acks" json:"required_acks"`
	Compression  string          `yaml:"compression" json:"compression"` // none, gzip, snappy, lz4, zstd
	QueueSize    int             `yaml:"queue_size" json:"queue_size"`
	Auth         KafkaAuthConfig `yaml:"auth" json:"auth"`
}

// KafkaAuthConfig contains SASL settings for the Kafka sink.
type KafkaAuthConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Mechanism string `yaml:"mechanism" json:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"password"`
}

// HotReloadConfig contains configuration file watching settings.
type HotReloadConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	DebounceInterval string `yaml:"debounce_interval" json:"debounce_interval"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name"`
	Exporter    string  `yaml:"exporter" json:"exporter"` // "otlp" or "jaeger"
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate"`
}
