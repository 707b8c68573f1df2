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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
redis:
  host: redis
cameras:
  - id: CAM1
  - id: CAM2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis:6379", cfg.Redis.Addr())
	assert.Equal(t, int64(100), cfg.Stream.MaxLen)
	assert.Equal(t, 10*time.Millisecond, cfg.Stream.PollInterval)
	assert.Equal(t, []string{"CAM1", "CAM2"}, cfg.CameraIDs())

	d := cfg.Detection
	assert.Equal(t, time.Second, d.VelocitySampleInterval)
	assert.Equal(t, 2*time.Second, d.ShoulderWindow)
	assert.Equal(t, 30*time.Second, d.HistoryTTL)
	assert.Equal(t, 10*time.Second, d.CleanupInterval)
	assert.Equal(t, 3, d.MinSamples)
	assert.Equal(t, 200.0, d.MinPeakVelocity)
	assert.Equal(t, 0.75, d.PeakRatio)
	assert.Equal(t, 0.25, d.DropRatio)
	assert.Equal(t, 50.0, d.AngleThreshold)
	assert.Equal(t, 20.0, d.ShoulderDrop)
	assert.Zero(t, d.MaxLatchedIDs)

	assert.Equal(t, "file", cfg.Diagnostics.Backend)
	assert.Equal(t, time.Second, cfg.Diagnostics.FlushInterval)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
stream:
  max_len: 25
  poll_interval: 50ms
detection:
  history_ttl: 45s
diagnostics:
  backend: none
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(25), cfg.Stream.MaxLen)
	assert.Equal(t, 50*time.Millisecond, cfg.Stream.PollInterval)
	assert.Equal(t, 45*time.Second, cfg.Detection.HistoryTTL)
	assert.Equal(t, "none", cfg.Diagnostics.Backend)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
cameras:
  - id: CAM1
`)
	t.Setenv("FALL_REDIS_HOST", "10.0.0.5")
	t.Setenv("FALL_STREAM_MAXLEN", "7")
	t.Setenv("FALL_CAMERAS", "A, B,,C")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Redis.Host)
	assert.Equal(t, int64(7), cfg.Stream.MaxLen)
	assert.Equal(t, []string{"A", "B", "C"}, cfg.CameraIDs())
}

func TestLoadRejectsInvalidCameras(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", "cameras:\n  - name: lobby\n"},
		{"duplicate id", "cameras:\n  - id: CAM1\n  - id: CAM1\n"},
		{"bad backend", "diagnostics:\n  backend: s3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
