package telemetry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.PrometheusPort != 9090 {
		t.Fatalf("unexpected metrics defaults: %+v", cfg.Metrics)
	}
	if cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.SampleRate != 1.0 {
		t.Fatalf("unexpected tracing defaults: %+v", cfg.Tracing)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default logging level, got %q", cfg.Logging.Level)
	}
}

func TestLoadConfigPartialFileMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "observability:\n  logging:\n    level: warn\n  metrics:\n    enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected overridden level warn, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected default format json, got %q", cfg.Logging.Format)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("expected metrics disabled by override")
	}
	if cfg.Metrics.PrometheusPort != 9090 {
		t.Fatalf("expected default prometheus port, got %d", cfg.Metrics.PrometheusPort)
	}
}

func TestSaveConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := Config{
		Logging: LoggingConfig{Level: "debug", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, PrometheusPort: 8080},
		Tracing: TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 0.5, ServiceName: "playback-test"},
	}
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig returned error: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if loaded.Logging.Level != "debug" || loaded.Metrics.PrometheusPort != 8080 || loaded.Tracing.SampleRate != 0.5 {
		t.Fatalf("round-tripped config mismatch: %+v", loaded)
	}
}

func TestLoadConfigInvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("invalid: [yaml: content"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}
