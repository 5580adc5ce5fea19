package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDataDirOverride(t *testing.T) {
	t.Setenv("HITOMI_DATA_DIR", "/tmp/hitomi-test")
	dir, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/hitomi-test", dir)

	path, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/hitomi-test", FileName), path)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	t.Setenv("HITOMI_DATA_DIR", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "chrome", cfg.Browser.Engine)
	assert.Equal(t, 420*time.Millisecond, cfg.Widget.LongPress)
	assert.Equal(t, 420*time.Millisecond, cfg.Delays().Busy)
	assert.Equal(t, 15*time.Second, cfg.Chat.ReadTimeout)
	assert.Equal(t, 12*time.Second, cfg.Browser.SnapshotTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadFrom(t *testing.T) {
	t.Setenv("HITOMI_TEST_ANON", "anon-key")
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
auth:
  base_url: https://auth.example.test
  anon_key: ${HITOMI_TEST_ANON}
chat:
  endpoint: https://auth.example.test/functions/v1/xai-chat
speech:
  always_listening: true
  busy_backoff: 1s
browser:
  engine: fetch
widget:
  density: 2.5
  long_press: 500ms
  keyboard_checks: [50ms, 150ms]
`), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "anon-key", cfg.Auth.AnonKey)
	assert.Equal(t, "anon-key", cfg.CloudConfig().AnonKey)
	assert.True(t, cfg.Speech.AlwaysListening)
	assert.Equal(t, time.Second, cfg.Delays().Busy)
	assert.Equal(t, 180*time.Millisecond, cfg.Delays().NoMatch)
	assert.Equal(t, "fetch", cfg.Browser.Engine)

	timing := cfg.Timing()
	assert.Equal(t, 500*time.Millisecond, timing.LongPress)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 150 * time.Millisecond}, timing.KeyboardChecks)
	assert.Equal(t, 8, timing.DragThreshold)
	assert.InDelta(t, 2.5, cfg.Widget.Density, 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown engine", func(c *Config) { c.Browser.Engine = "lynx" }},
		{"zero density", func(c *Config) { c.Widget.Density = 0 }},
		{"read timeout not longer than snapshot", func(c *Config) { c.Chat.ReadTimeout = c.Browser.SnapshotTimeout }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Speech.AlwaysListening = true
	cfg.Widget.Hop = 300 * time.Millisecond
	require.NoError(t, cfg.Save())

	got, err := LoadFrom(filepath.Join(cfg.DataDir, FileName))
	require.NoError(t, err)
	assert.True(t, got.Speech.AlwaysListening)
	assert.Equal(t, 300*time.Millisecond, got.Widget.Hop)
}

func TestWatchDeliversReloads(t *testing.T) {
	defer goleak.VerifyNone(t)
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("speech:\n  always_listening: false\n"), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, func(c *Config) { got <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("speech:\n  always_listening: true\n"), 0600))

	select {
	case cfg := <-got:
		assert.True(t, cfg.Speech.AlwaysListening)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload delivered")
	}

	cancel()
	require.NoError(t, <-done)
}
