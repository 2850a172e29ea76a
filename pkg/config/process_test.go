package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hostd/pkg/log"
)

func TestLoadProcessConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadProcessConfig("")
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, cfg.LogLevel)
	assert.False(t, cfg.GRPCEnabled)
}

func TestLoadProcessConfig_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "process.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log-level: debug
log-json: true
grpc-enabled: true
grpc-address: "127.0.0.1:9090"
`), 0o644))

	cfg, err := LoadProcessConfig(path)
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "127.0.0.1:9090", cfg.GRPCAddress)
}

func TestLoadProcessConfig_RejectsGRPCEnabledWithoutAddress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "process.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
grpc-enabled: true
`), 0o644))

	_, err := LoadProcessConfig(path)
	require.Error(t, err)
}

func TestLoadProcessConfig_RejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "process.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bogus-field: true
`), 0o644))

	_, err := LoadProcessConfig(path)
	require.Error(t, err)
}

func TestLoadProcessConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadProcessConfig("/nonexistent/process.yaml")
	require.Error(t, err)
}
