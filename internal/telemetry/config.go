// Package telemetry wires the playback core's tracing spans and
// Prometheus metrics, grounded on the teacher's internal/observability
// package: a YAML-configurable logging/metrics/tracing bundle, one
// Tracer scope per subsystem, and registerer-scoped metric structs.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Exporter       string  `yaml:"exporter"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	SampleRate     float64 `yaml:"sample_rate"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
}

// Config is the observability section of a playback deployment's
// configuration file.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

type wireConfig struct {
	Observability Config `yaml:"observability"`
}

// DefaultConfig mirrors the teacher's posture: metrics on by default,
// tracing off by default (it requires a collector endpoint), a single
// OTLP-over-HTTP exporter rather than the teacher's multi-backend list.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, PrometheusPort: 9090},
		Tracing: TracingConfig{
			Enabled:        false,
			Exporter:       "otlp",
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1.0,
			ServiceName:    "playback-core",
			ServiceVersion: "dev",
		},
	}
}

// LoadConfig reads path and overlays it onto DefaultConfig; a missing
// file yields the defaults rather than an error.
func LoadConfig(path string) (Config, error) {
	cfg := wireConfig{Observability: DefaultConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg.Observability, nil
		}
		return cfg.Observability, fmt.Errorf("telemetry: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg.Observability, fmt.Errorf("telemetry: parse %s: %w", path, err)
	}
	return cfg.Observability, nil
}

// SaveConfig writes cfg to path, creating its parent directory if
// needed.
func SaveConfig(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("telemetry: create dir for %s: %w", path, err)
	}
	data, err := yaml.Marshal(wireConfig{Observability: cfg})
	if err != nil {
		return fmt.Errorf("telemetry: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("telemetry: write %s: %w", path, err)
	}
	return nil
}
