// Package config provides unified configuration loading for the Maia core:
// defaults, then a YAML file, then MAIA_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration surface of the orchestration core.
type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Audit        AuditConfig        `yaml:"audit"`
	Log          LogConfig          `yaml:"log"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// OrchestratorConfig bounds chain execution.
type OrchestratorConfig struct {
	MaxHandoffs          int `yaml:"max_handoffs"`
	RetryAttempts        int `yaml:"retry_attempts"`
	BackoffBaseMS        int `yaml:"backoff_base_ms"`
	HandoffCallTimeoutMS int `yaml:"handoff_call_timeout_ms"`
}

// BackoffBase returns the retry backoff base as a duration.
func (c OrchestratorConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

// HandoffCallTimeout returns the per-invocation timeout as a duration.
func (c OrchestratorConfig) HandoffCallTimeout() time.Duration {
	return time.Duration(c.HandoffCallTimeoutMS) * time.Millisecond
}

// DispatchConfig scopes the model routing policy.
type DispatchConfig struct {
	// SessionCostCap in USD; zero disables the cap.
	SessionCostCap float64 `yaml:"session_cost_cap"`
	// RequestsPerSecond throttles dispatch; zero disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// AuditConfig controls where step records go.
type AuditConfig struct {
	// StorePath is the sqlite file for the persistent sink; empty disables it.
	StorePath string `yaml:"store_path"`
	// Stream enables the newline-delimited JSON stream on stderr, keeping
	// stdout free for result output.
	Stream bool `yaml:"stream"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// TelemetryConfig controls the OTel SDK.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// MetricsConfig controls the Prometheus surface.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	// ListenAddr serves /metrics when non-empty, e.g. ":9090".
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxHandoffs:          5,
			RetryAttempts:        3,
			BackoffBaseMS:        1000,
			HandoffCallTimeoutMS: 30000,
		},
		Dispatch: DispatchConfig{},
		Audit:    AuditConfig{Stream: true},
		Log:      LogConfig{Level: "info", Format: "json"},
		Telemetry: TelemetryConfig{
			ServiceName:  "maia-core",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Metrics: MetricsConfig{Namespace: "maia"},
	}
}

// Load builds a Config from defaults, the optional YAML file at path, and
// environment overrides, in that precedence order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides individual fields from MAIA_-prefixed variables.
func applyEnv(cfg *Config) {
	envInt("MAIA_MAX_HANDOFFS", &cfg.Orchestrator.MaxHandoffs)
	envInt("MAIA_RETRY_ATTEMPTS", &cfg.Orchestrator.RetryAttempts)
	envInt("MAIA_BACKOFF_BASE_MS", &cfg.Orchestrator.BackoffBaseMS)
	envInt("MAIA_HANDOFF_CALL_TIMEOUT_MS", &cfg.Orchestrator.HandoffCallTimeoutMS)
	envFloat("MAIA_SESSION_COST_CAP", &cfg.Dispatch.SessionCostCap)
	envFloat("MAIA_REQUESTS_PER_SECOND", &cfg.Dispatch.RequestsPerSecond)
	envString("MAIA_AUDIT_STORE_PATH", &cfg.Audit.StorePath)
	envString("MAIA_LOG_LEVEL", &cfg.Log.Level)
	envString("MAIA_LOG_FORMAT", &cfg.Log.Format)
	envBool("MAIA_TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	envString("MAIA_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	envString("MAIA_METRICS_LISTEN_ADDR", &cfg.Metrics.ListenAddr)
}

// Validate rejects configurations the orchestrator cannot honor.
func (c *Config) Validate() error {
	if c.Orchestrator.MaxHandoffs < 1 {
		return fmt.Errorf("orchestrator.max_handoffs must be >= 1, got %d", c.Orchestrator.MaxHandoffs)
	}
	if c.Orchestrator.RetryAttempts < 0 {
		return fmt.Errorf("orchestrator.retry_attempts must be >= 0, got %d", c.Orchestrator.RetryAttempts)
	}
	if c.Orchestrator.BackoffBaseMS < 0 {
		return fmt.Errorf("orchestrator.backoff_base_ms must be >= 0, got %d", c.Orchestrator.BackoffBaseMS)
	}
	if c.Orchestrator.HandoffCallTimeoutMS <= 0 {
		return fmt.Errorf("orchestrator.handoff_call_timeout_ms must be > 0, got %d", c.Orchestrator.HandoffCallTimeoutMS)
	}
	if c.Dispatch.SessionCostCap < 0 {
		return fmt.Errorf("dispatch.session_cost_cap must be >= 0, got %f", c.Dispatch.SessionCostCap)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
