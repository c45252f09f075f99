// Package config loads PlaybackConfig, grounded on the teacher's
// internal/config: a YAML-backed struct with defaults, environment
// overrides, and provenance tracking (ValueSource) so callers — and
// the Troubleshooter's diagnostics — can tell where a value came from.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ValueSource describes where a configuration value originated.
type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceFile    ValueSource = "file"
	SourceEnv     ValueSource = "environment"
	SourceFlag    ValueSource = "flag"
)

// Defaults per spec.md §6.
const (
	DefaultScreenshotThreshold = 0.85
	DefaultDriftThreshold      = 50.0 // px
	DefaultElementTimeout      = 10 * time.Second
	DefaultStepTimeout         = 30 * time.Second
	DefaultMaxHealingAttempts  = 3
)

// PlaybackConfig carries every option recognised by the core
// (spec.md §6).
type PlaybackConfig struct {
	SelfHealingEnabled          bool          `yaml:"self_healing_enabled"`
	ScreenshotComparisonEnabled bool          `yaml:"screenshot_comparison_enabled"`
	DriftDetectionEnabled       bool          `yaml:"drift_detection_enabled"`
	GraphFindingEnabled         bool          `yaml:"graph_finding_enabled"`
	AIHealingEnabled            bool          `yaml:"ai_healing_enabled"`
	AutoApplyHealings           bool          `yaml:"auto_apply_healings"`
	FlagMediumConfidence        bool          `yaml:"flag_medium_confidence"`
	MaxHealingAttempts          int           `yaml:"max_healing_attempts"`
	StepTimeout                 time.Duration `yaml:"step_timeout"`
	ElementTimeout               time.Duration `yaml:"element_timeout"`
	ScreenshotThreshold          float64       `yaml:"screenshot_threshold"`
	DriftThreshold               float64       `yaml:"drift_threshold"`
	DebugLogging                 bool          `yaml:"debug_logging"`

	StopOnError bool `yaml:"stop_on_error"`

	// provenance: field name -> source, populated by Load.
	sources map[string]ValueSource
}

// Default returns the spec-mandated defaults: self-healing, screenshot
// comparison, drift detection, graph finding and medium-confidence
// flagging are on; AI healing, auto-applied healings, debug logging and
// stop-on-error are off.
func Default() PlaybackConfig {
	return PlaybackConfig{
		SelfHealingEnabled:          true,
		ScreenshotComparisonEnabled: true,
		DriftDetectionEnabled:       true,
		GraphFindingEnabled:         true,
		AIHealingEnabled:            false,
		AutoApplyHealings:           false,
		FlagMediumConfidence:        true,
		MaxHealingAttempts:          DefaultMaxHealingAttempts,
		StepTimeout:                 DefaultStepTimeout,
		ElementTimeout:              DefaultElementTimeout,
		ScreenshotThreshold:         DefaultScreenshotThreshold,
		DriftThreshold:              DefaultDriftThreshold,
		DebugLogging:                false,
		StopOnError:                 false,
		sources:                     map[string]ValueSource{},
	}
}

// Source reports where a field's current value came from: "env" if an
// environment variable set it, otherwise "file" for every field once
// Load has read a config file (whether or not the file named that
// field), and "default" if no file was read.
func (c PlaybackConfig) Source(field string) ValueSource {
	if c.sources == nil {
		return SourceDefault
	}
	if src, ok := c.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// Load builds a PlaybackConfig starting from Default(), overlaying a
// YAML file (if path is non-empty and exists), then environment
// variables prefixed PLAYBACK_. Precedence: env > file > default.
func Load(path string) (PlaybackConfig, error) {
	cfg := Default()
	cfg.sources = map[string]ValueSource{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
			markAllFileSourced(&cfg)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func markAllFileSourced(cfg *PlaybackConfig) {
	for _, f := range fieldNames {
		cfg.sources[f] = SourceFile
	}
}

var fieldNames = []string{
	"self_healing_enabled", "screenshot_comparison_enabled", "drift_detection_enabled",
	"graph_finding_enabled", "ai_healing_enabled", "auto_apply_healings",
	"flag_medium_confidence", "max_healing_attempts", "step_timeout",
	"element_timeout", "screenshot_threshold", "drift_threshold", "debug_logging",
	"stop_on_error",
}

func applyEnvOverrides(cfg *PlaybackConfig) {
	setBool := func(env, field string, dst *bool) {
		if v, ok := os.LookupEnv(env); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
				cfg.sources[field] = SourceEnv
			}
		}
	}
	setFloat := func(env, field string, dst *float64) {
		if v, ok := os.LookupEnv(env); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
				cfg.sources[field] = SourceEnv
			}
		}
	}
	setInt := func(env, field string, dst *int) {
		if v, ok := os.LookupEnv(env); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
				cfg.sources[field] = SourceEnv
			}
		}
	}
	setDuration := func(env, field string, dst *time.Duration) {
		if v, ok := os.LookupEnv(env); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
				cfg.sources[field] = SourceEnv
			}
		}
	}

	setBool("PLAYBACK_SELF_HEALING_ENABLED", "self_healing_enabled", &cfg.SelfHealingEnabled)
	setBool("PLAYBACK_SCREENSHOT_COMPARISON_ENABLED", "screenshot_comparison_enabled", &cfg.ScreenshotComparisonEnabled)
	setBool("PLAYBACK_DRIFT_DETECTION_ENABLED", "drift_detection_enabled", &cfg.DriftDetectionEnabled)
	setBool("PLAYBACK_GRAPH_FINDING_ENABLED", "graph_finding_enabled", &cfg.GraphFindingEnabled)
	setBool("PLAYBACK_AI_HEALING_ENABLED", "ai_healing_enabled", &cfg.AIHealingEnabled)
	setBool("PLAYBACK_AUTO_APPLY_HEALINGS", "auto_apply_healings", &cfg.AutoApplyHealings)
	setBool("PLAYBACK_FLAG_MEDIUM_CONFIDENCE", "flag_medium_confidence", &cfg.FlagMediumConfidence)
	setInt("PLAYBACK_MAX_HEALING_ATTEMPTS", "max_healing_attempts", &cfg.MaxHealingAttempts)
	setDuration("PLAYBACK_STEP_TIMEOUT", "step_timeout", &cfg.StepTimeout)
	setDuration("PLAYBACK_ELEMENT_TIMEOUT", "element_timeout", &cfg.ElementTimeout)
	setFloat("PLAYBACK_SCREENSHOT_THRESHOLD", "screenshot_threshold", &cfg.ScreenshotThreshold)
	setFloat("PLAYBACK_DRIFT_THRESHOLD", "drift_threshold", &cfg.DriftThreshold)
	setBool("PLAYBACK_DEBUG_LOGGING", "debug_logging", &cfg.DebugLogging)
	setBool("PLAYBACK_STOP_ON_ERROR", "stop_on_error", &cfg.StopOnError)
}
