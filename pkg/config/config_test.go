package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	require.NoError(t, Load(""))

	cfg := Get()
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.ReviewTimeout)
	assert.Empty(t, cfg.HistoryDBPath, "history should be disabled by default")
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	require.NoError(t, Load(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Equal(t, 30*time.Second, Get().AckTimeout)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviewgate.yaml")
	body := "poll_interval: 50ms\nreview_timeout: 1m\nwhisper_binary: /opt/whisper\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	require.NoError(t, Load(path))
	defer func() { _ = Load("") }()

	cfg := Get()
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, time.Minute, cfg.ReviewTimeout)
	assert.Equal(t, "/opt/whisper", cfg.WhisperBinary)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_interval: [not a duration"), 0o644))

	assert.Error(t, Load(path))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REVIEW_GATE_SIGNAL_DIR", "/custom/signals")
	t.Setenv("REVIEW_GATE_POLL_INTERVAL", "25ms")

	require.NoError(t, Load(""))
	defer func() { _ = Load("") }()

	cfg := Get()
	assert.Equal(t, "/custom/signals", cfg.SignalDir)
	assert.Equal(t, 25*time.Millisecond, cfg.PollInterval)
}
