package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIsolatedLoader() *Loader {
	return &Loader{v: viper.New()}
}

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := newIsolatedLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "vouchers.db", cfg.Store.SQLitePath)
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voucherscan.yaml")
	content := `
log_level: debug
pipeline:
  segment:
    mode: halves
  ocr:
    language: deu
store:
  backend: object
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := newIsolatedLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "halves", cfg.Pipeline.Segment.Mode)
	assert.Equal(t, "deu", cfg.Pipeline.OCR.Language)
	assert.Equal(t, "object", cfg.Store.Backend)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched keys keep their defaults.
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestLoadWithFile_Missing(t *testing.T) {
	_, err := newIsolatedLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voucherscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: shouting\n"), 0o600))

	_, err := newIsolatedLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VOUCHERSCAN_LOG_LEVEL", "warn")

	cfg, err := newIsolatedLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestGetConfigSearchPaths(t *testing.T) {
	paths := GetConfigSearchPaths()
	assert.Contains(t, paths, ".")
	assert.Contains(t, paths, "/etc/voucherscan")
}
