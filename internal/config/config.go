// Package config loads the monitoring server settings from an optional YAML file and
// MONITOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/internet-measurement-network/monitoring/internal/store"
	"github.com/internet-measurement-network/monitoring/internal/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. MONITOR_INGEST_PORT
const EnvPrefix = "MONITOR"

// Config is the complete server configuration
type Config struct {
	Ingest         IngestConfig    `mapstructure:"ingest"`
	Query          QueryConfig     `mapstructure:"query"`
	Store          StoreConfig     `mapstructure:"store"`
	Redis          RedisConfig     `mapstructure:"redis"`
	Telemetry      TelemetryConfig `mapstructure:"telemetry"`
	Logging        LoggingConfig   `mapstructure:"logging"`
	StatusInterval time.Duration   `mapstructure:"status_interval"`
	ShutdownGrace  time.Duration   `mapstructure:"shutdown_grace"`
}

// IngestConfig configures the TCP ingestion listener
type IngestConfig struct {
	Port           int           `mapstructure:"port"`
	MaxConnections int           `mapstructure:"max_connections"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// QueryConfig configures the gRPC query service
type QueryConfig struct {
	Port        int    `mapstructure:"port"`
	ServiceName string `mapstructure:"service_name"`
}

// StoreConfig configures the in-memory stores
type StoreConfig struct {
	HistorySize  int    `mapstructure:"history_size"`
	MaxAlerts    int    `mapstructure:"max_alerts"`
	StatusPolicy string `mapstructure:"status_policy"`
}

// RedisConfig configures the optional alert journal
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// TelemetryConfig configures tracing and metrics export
type TelemetryConfig struct {
	TracingEnabled  bool   `mapstructure:"tracing_enabled"`
	TracingEndpoint string `mapstructure:"tracing_endpoint"`
	MetricsExporter string `mapstructure:"metrics_exporter"`
	MetricsEndpoint string `mapstructure:"metrics_endpoint"`
	Insecure        bool   `mapstructure:"insecure"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File enables a rotated log file next to stdout when set
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads the configuration. path may be empty, in which case only defaults and the
// environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ingest.port", 9877)
	v.SetDefault("ingest.max_connections", 1024)
	v.SetDefault("ingest.read_timeout", "30s")
	v.SetDefault("ingest.write_timeout", "5s")

	v.SetDefault("query.port", 1099)
	v.SetDefault("query.service_name", "MonitoringService")

	v.SetDefault("store.history_size", 50)
	v.SetDefault("store.max_alerts", 0)
	v.SetDefault("store.status_policy", store.PolicyAlwaysOnline)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.tracing_endpoint", "otel-collector:4317")
	v.SetDefault("telemetry.metrics_exporter", string(telemetry.ExporterNone))
	v.SetDefault("telemetry.metrics_endpoint", "otel-collector:4317")
	v.SetDefault("telemetry.insecure", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 10)

	v.SetDefault("status_interval", "30s")
	v.SetDefault("shutdown_grace", "2s")
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Ingest.Port < 0 || cfg.Ingest.Port > 65535 {
		errs = append(errs, errors.New("ingest.port must be between 0 and 65535"))
	}
	if cfg.Query.Port < 0 || cfg.Query.Port > 65535 {
		errs = append(errs, errors.New("query.port must be between 0 and 65535"))
	}
	if cfg.Query.ServiceName == "" {
		errs = append(errs, errors.New("query.service_name is required"))
	}
	if cfg.Ingest.MaxConnections < 0 {
		errs = append(errs, errors.New("ingest.max_connections must not be negative"))
	}
	if cfg.Ingest.ReadTimeout < 0 || cfg.Ingest.WriteTimeout < 0 {
		errs = append(errs, errors.New("ingest timeouts must not be negative"))
	}
	if cfg.Store.HistorySize < 1 {
		errs = append(errs, errors.New("store.history_size must be at least 1"))
	}
	if cfg.Store.MaxAlerts < 0 {
		errs = append(errs, errors.New("store.max_alerts must not be negative"))
	}
	if _, err := store.ParseStatusPolicy(cfg.Store.StatusPolicy); err != nil {
		errs = append(errs, err)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if cfg.StatusInterval < 0 || cfg.ShutdownGrace < 0 {
		errs = append(errs, errors.New("status_interval and shutdown_grace must not be negative"))
	}

	switch telemetry.ExporterType(cfg.Telemetry.MetricsExporter) {
	case telemetry.ExporterNone, telemetry.ExporterStdout, telemetry.ExporterOTLPGRPC:
	default:
		errs = append(errs, fmt.Errorf("telemetry.metrics_exporter %q is not one of none, stdout, otlp-grpc", cfg.Telemetry.MetricsExporter))
	}

	return errors.Join(errs...)
}
