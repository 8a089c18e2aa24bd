package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8465, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 100, cfg.Reindex.BatchSize)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: /var/lib/discovery
server:
  port: 9000
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/discovery", cfg.DataDir)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISCOVERY_DATA_DIR", "/tmp/disc")
	t.Setenv("DISCOVERY_SERVER_PORT", "7777")
	t.Setenv("DISCOVERY_LOG_FORMAT", "console")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/disc", cfg.DataDir)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	t.Setenv("DISCOVERY_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestInvalidValuesRejected(t *testing.T) {
	t.Setenv("DISCOVERY_LOG_LEVEL", "loud")
	_, err := Load("")
	assert.Error(t, err)
}

func TestInvalidPortRejected(t *testing.T) {
	t.Setenv("DISCOVERY_SERVER_PORT", "70000")
	_, err := Load("")
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/srv/discovery"}
	assert.Equal(t, "/srv/discovery/discovery.db", cfg.DBPath())
	assert.Equal(t, "/srv/discovery/bleve", cfg.IndexPath())
}
