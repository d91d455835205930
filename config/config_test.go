package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 2, cfg.ScanDays)
	assert.Equal(t, 5*time.Second, cfg.PopTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"REDIS_URL":            "redis://redis:6379/1",
		"API_FOOTBALL_KEY":     "secret",
		"WORKER_COUNT":         "4",
		"SCAN_DAYS":            "3",
		"HEARTBEAT_INTERVAL":   "1m",
		"STORE_RETRY_ATTEMPTS": "0",
		"SERVER_ADDR":          "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "redis://redis:6379/1", cfg.RedisURL)
	assert.Equal(t, "secret", cfg.APIFootballKey)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 3, cfg.ScanDays)
	assert.Equal(t, time.Minute, cfg.HeartbeatInterval)
	assert.Equal(t, 0, cfg.StoreRetryAttempts)
	assert.Equal(t, ":8080", cfg.ServerAddr)
}

func TestFromEnvRejectsGarbage(t *testing.T) {
	_, err := FromEnv(lookupFrom(map[string]string{
		"WORKER_COUNT":      "-1",
		"STORE_RETRY_DELAY": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_COUNT")
	assert.Contains(t, err.Error(), "STORE_RETRY_DELAY")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCAN_SCHEDULE=@every 10m\n"), 0o600))
	t.Setenv("SCAN_SCHEDULE", "")
	require.NoError(t, os.Unsetenv("SCAN_SCHEDULE"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "@every 10m", cfg.ScanSchedule)
}
