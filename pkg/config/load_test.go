package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"onebarn/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoad_UsesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.Load("non-existent-config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Bridge.Host)
	assert.Equal(t, 1984, cfg.Bridge.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_LoadsFromYAMLAndAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
bridge:
  host: "10.0.0.5"
  port: 1985
  timeout: 3s
  sources:
    - id: stall-a
      name: "Stall A"
      ptz: true
    - id: paddock
      name: "Paddock"

health:
  interval: 10s
  initial_backoff: 500ms
  max_backoff: 20s
  failure_threshold: 3

streams:
  metrics_interval: 2s
  max_active: 4
`)

	t.Setenv("ONEBARN_BRIDGE_PORT", "2000")
	t.Setenv("ONEBARN_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Bridge.Host)
	assert.Equal(t, 2000, cfg.Bridge.Port)
	assert.Equal(t, 3*time.Second, cfg.Bridge.Timeout)
	require.Len(t, cfg.Bridge.Sources, 2)
	assert.True(t, cfg.Bridge.Sources[0].PTZ)
	assert.Equal(t, "paddock", cfg.Bridge.Sources[1].ID)
	assert.Equal(t, 500*time.Millisecond, cfg.Health.InitialBackoff)
	assert.Equal(t, 3, cfg.Health.FailureThreshold)
	assert.Equal(t, 4, cfg.Streams.MaxActive)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched sections keep their defaults
	assert.Equal(t, 2.0, cfg.Health.Multiplier)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "bridge: [not a map")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeTempConfig(t, `
health:
  failure_threshold: 0
`)
	_, err := config.Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failure_threshold")
}

func TestLoad_ServiceKeyFromEnv(t *testing.T) {
	t.Setenv("ONEBARN_SERVICE_KEY", "backend-key")

	cfg, err := config.Load("non-existent-config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "backend-key", cfg.Auth.ServiceKey)
}
