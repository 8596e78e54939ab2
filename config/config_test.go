package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, 5, cfg.Orchestrator.MaxHandoffs)
	assert.Equal(t, 3, cfg.Orchestrator.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Orchestrator.BackoffBase())
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.HandoffCallTimeout())
	assert.Equal(t, 0.0, cfg.Dispatch.SessionCostCap)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "maia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
orchestrator:
  max_handoffs: 2
  retry_attempts: 1
dispatch:
  session_cost_cap: 0.25
log:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Orchestrator.MaxHandoffs)
	assert.Equal(t, 1, cfg.Orchestrator.RetryAttempts)
	assert.Equal(t, 0.25, cfg.Dispatch.SessionCostCap)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched fields keep their defaults.
	assert.Equal(t, 30000, cfg.Orchestrator.HandoffCallTimeoutMS)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maia.yaml")
	require.NoError(t, os.WriteFile(path, []byte("orchestrator:\n  max_handoffs: 2\n"), 0o600))

	t.Setenv("MAIA_MAX_HANDOFFS", "7")
	t.Setenv("MAIA_SESSION_COST_CAP", "1.5")
	t.Setenv("MAIA_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Orchestrator.MaxHandoffs)
	assert.Equal(t, 1.5, cfg.Dispatch.SessionCostCap)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max handoffs", func(c *Config) { c.Orchestrator.MaxHandoffs = 0 }},
		{"negative retries", func(c *Config) { c.Orchestrator.RetryAttempts = -1 }},
		{"zero call timeout", func(c *Config) { c.Orchestrator.HandoffCallTimeoutMS = 0 }},
		{"negative cost cap", func(c *Config) { c.Dispatch.SessionCostCap = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
