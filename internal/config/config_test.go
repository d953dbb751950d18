package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trickle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Engine.MaxRetries)
	assert.Equal(t, 300*time.Millisecond, cfg.Engine.RetryDelay)
	assert.Equal(t, 5*time.Millisecond, cfg.Engine.IdleDelay)
	assert.Equal(t, 65536, cfg.Engine.BufferSize)
	assert.Equal(t, 5*time.Minute, cfg.Engine.Timeout)
	assert.Equal(t, 400.0, cfg.Monitor.TargetKBps)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
heap_budget: 300000
engine:
  max_retries: 4
  retry_delay: 1s
  timeout: 30s
storage:
  root: /data/flash
  capacity: 1048576
http:
  user_agent: fleet-updater
  headers:
    X-Device: esp-01
s3_profile: ota
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(300000), cfg.HeapBudget)
	assert.Equal(t, 4, cfg.Engine.MaxRetries)
	assert.Equal(t, time.Second, cfg.Engine.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 8192, cfg.Engine.ChunkSize, "untouched fields keep defaults")
	assert.Equal(t, "/data/flash", cfg.Storage.Root)
	assert.Equal(t, int64(1048576), cfg.Storage.Capacity)
	assert.Equal(t, "fleet-updater", cfg.HTTP.UserAgent)
	assert.Equal(t, "esp-01", cfg.HTTP.Headers["X-Device"])
	assert.Equal(t, "ota", cfg.S3Profile)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"negative retries": "engine:\n  max_retries: -1\n",
		"zero timeout":     "engine:\n  timeout: 0s\n",
		"zero chunk":       "engine:\n  chunk_size: 0\n",
		"zero target":      "monitor:\n  target_kbps: 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "engine: [not, a, map]\n"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}
