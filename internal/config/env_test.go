package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_PopulatesFields(t *testing.T) {
	t.Setenv("APP_DATA_DIR", "/var/lib/spacesync")
	t.Setenv("APP_REGISTRY_FILE", "/var/lib/spacesync/registry.json")
	t.Setenv("DEVICE_TOKEN", "tok-123")
	t.Setenv("DEVICE_TYPE", "desktop")
	t.Setenv("REMOTE_URL", "wss://hub.example.com/sync")
	t.Setenv("WORKERS_TICK_INTERVAL", "2s")
	t.Setenv("WORKERS_REASK_AFTER", "20s")

	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "/var/lib/spacesync", cfg.App.DataDir)
	assert.Equal(t, "/var/lib/spacesync/registry.json", cfg.App.RegistryFile)
	assert.Equal(t, "tok-123", cfg.Device.Token)
	assert.Equal(t, "desktop", cfg.Device.Type)
	assert.Equal(t, "wss://hub.example.com/sync", cfg.Remote.URL)
	assert.Equal(t, 2*time.Second, cfg.Workers.TickInterval)
	assert.Equal(t, 20*time.Second, cfg.Workers.ReaskAfter)
}

func TestParseEnv_InvalidDuration(t *testing.T) {
	t.Setenv("WORKERS_TICK_INTERVAL", "not-a-duration")

	cfg := &StructuredConfig{}
	assert.Error(t, parseEnv(cfg))
}

func TestParseEnv_EmptyEnvironmentLeavesZeroValues(t *testing.T) {
	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Empty(t, cfg.Device.Token)
	assert.Zero(t, cfg.Workers.TickInterval)
}
