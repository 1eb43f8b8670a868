package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/changegate/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	tmp := t.TempDir()
	t.Chdir(tmp)
	t.Setenv("HOME", tmp)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultRunVariant, cfg.Workflows.Run)
	assert.Equal(t, config.DefaultSkipVariant, cfg.Workflows.Skip)
	assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, config.DefaultFormat, cfg.Output.Format)
	assert.Equal(t, config.DefaultServeAddr, cfg.Serve.Addr)
	assert.Equal(t, config.DefaultLogLevel, cfg.Log.Level)
	assert.Empty(t, cfg.Policy.File)
	assert.Empty(t, cfg.Policy.Patterns)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "changegate.yaml")

	content := []byte(`policy:
  file: ci/policy.yaml
workflows:
  run: integration
  skip: noop
timeout: 90s
output:
  format: yaml
log:
  level: debug
  json: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ci/policy.yaml", cfg.Policy.File)
	assert.Equal(t, "integration", cfg.Workflows.Run)
	assert.Equal(t, "noop", cfg.Workflows.Skip)
	assert.Equal(t, 90*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.True(t, cfg.Log.JSON)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
}

func TestLoadConfigInvalidFormat(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "changegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: xml\n"), 0o600))

	_, err := config.LoadConfig(path)

	require.ErrorIs(t, err, config.ErrInvalidFormat)
}

func TestLoadConfigInvalidTimeout(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "changegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: soon\n"), 0o600))

	_, err := config.LoadConfig(path)

	require.ErrorIs(t, err, config.ErrInvalidTimeout)
}

func TestLoadConfigEmptyWorkflow(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "changegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflows:\n  run: \"\"\n"), 0o600))

	_, err := config.LoadConfig(path)

	require.ErrorIs(t, err, config.ErrEmptyWorkflow)
}

func TestLoadConfigInvalidLogLevel(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "changegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: trace\n"), 0o600))

	_, err := config.LoadConfig(path)

	require.ErrorIs(t, err, config.ErrInvalidLogLevel)
}

func TestValidateDefaults(t *testing.T) {
	cfg := &config.Config{
		Workflows: config.WorkflowsConfig{Run: "full", Skip: "skip"},
		Timeout:   config.DefaultTimeout,
		Output:    config.OutputConfig{Format: "json"},
		Log:       config.LogConfig{Level: "info"},
	}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.TimeoutDuration())
}
