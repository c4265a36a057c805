package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	// A nonexistent explicit file is an error; defaults path is tested below.
	assert.Error(t, err)
	assert.Nil(t, cfg)

	v := viper.New()
	SetDefaults(v)

	var c Config
	require.NoError(t, v.Unmarshal(&c))
	require.NoError(t, c.Validate())

	assert.Equal(t, 8090, c.Server.Port)
	assert.Equal(t, 1920, c.Capture.Width)
	assert.Equal(t, 1080, c.Capture.Height)
	assert.Equal(t, 30, c.Capture.FPS)
	assert.Equal(t, 20*time.Second, c.Weapons.DetectionWindow)
	assert.Equal(t, 6, c.Recorder.PowerOffStreak)
	assert.Equal(t, 10*time.Second, c.Recorder.PowerOffInterval)
	assert.Equal(t, 256, c.Events.QueueSize)
	assert.Equal(t, "private", c.Uploader.PrivacyStatus)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "splat-replay.yaml")
	content := `
server:
  port: 9000
recorder:
  host: 192.168.1.10
  password: secret
weapons:
  detection_window: 30s
storage:
  recorded_dir: /tmp/rec
  edited_dir: /tmp/edit
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "192.168.1.10", cfg.Recorder.Host)
	assert.Equal(t, "secret", cfg.Recorder.Password)
	assert.Equal(t, 30*time.Second, cfg.Weapons.DetectionWindow)
	assert.Equal(t, "/tmp/rec", cfg.Storage.RecordedDir)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		v := viper.New()
		SetDefaults(v)
		var c Config
		if err := v.Unmarshal(&c); err != nil {
			t.Fatal(err)
		}
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero fps", func(c *Config) { c.Capture.FPS = 0 }, "capture.fps"},
		{"zero streak", func(c *Config) { c.Recorder.PowerOffStreak = 0 }, "power_off_streak"},
		{"missing matcher dir", func(c *Config) { c.Matcher.ConfigDir = "" }, "matcher.config_dir"},
		{"bad iou", func(c *Config) { c.Weapons.OutlineIoUThreshold = 1.5 }, "outline_iou_threshold"},
		{"missing recorded dir", func(c *Config) { c.Storage.RecordedDir = "" }, "recorded_dir"},
		{"bad privacy", func(c *Config) { c.Uploader.PrivacyStatus = "hidden" }, "privacy_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
