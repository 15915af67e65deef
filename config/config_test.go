package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests mutate process environment and the singleton, so they do not run in parallel.

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("RAFFLE_CONFIG_FILE", "")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"ProxyContractAddress.txt"}, cfg.AddressFiles)
	assert.Equal(t, int64(10), cfg.MinimumThreshold)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raffle.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url = "postgres://file@db:5432"
http_addr = ":9000"
minimum_threshold = 25
address_files = ["scripts/ProxyContractAddress.txt", "web/public/ProxyContractAddress.txt"]
log_format = "json"
`), 0o644))

	t.Setenv("RAFFLE_CONFIG_FILE", path)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MINIMUM_THRESHOLD", "")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://file@db:5432", cfg.DatabaseURL)
	assert.Equal(t, ":9100", cfg.HTTPAddr, "environment wins over file")
	assert.Equal(t, int64(25), cfg.MinimumThreshold)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Len(t, cfg.AddressFiles, 2)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("RAFFLE_CONFIG_FILE", "")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "")

	_, err := load()
	assert.ErrorContains(t, err, "DATABASE_URL is required")
}

func TestLoad_AddressFilesFromEnvironment(t *testing.T) {
	t.Setenv("RAFFLE_CONFIG_FILE", "")
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("ADDRESS_FILES", " a.txt, ,b.txt ")

	cfg, err := load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, cfg.AddressFiles)
}

func TestSetTestConfig(t *testing.T) {
	defer ResetConfig()

	testConfig := NewTestConfig()
	testConfig.HTTPAddr = ":1234"
	SetTestConfig(testConfig)

	assert.Same(t, testConfig, Get())
}
