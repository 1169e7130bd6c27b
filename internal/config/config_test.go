package config

import (
	"log/slog"
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

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	t.Setenv("CRDASH_BACKEND_URL", "")
	t.Setenv("CRDASH_MODEL", "")
	path := writeConfig(t, `
backend:
  url: https://review.example.com
model: claude-3-sonnet
upload:
  progress_interval: 250ms
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://review.example.com", cfg.Backend.URL)
	assert.Equal(t, 120*time.Second, cfg.Backend.Timeout, "unset keys keep defaults")
	assert.Equal(t, "claude-3-sonnet", cfg.Model)
	assert.Equal(t, 250*time.Millisecond, cfg.Upload.ProgressInterval)
	assert.Equal(t, 10, cfg.Upload.ProgressStep)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, "127.0.0.1:6142", cfg.Server.Address())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CRDASH_BACKEND_URL", "http://10.0.0.5:9000")
	t.Setenv("CRDASH_MODEL", "gpt-4o-mini")
	path := writeConfig(t, "backend:\n  url: https://ignored.example.com\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:9000", cfg.Backend.URL)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDefaultPathMayBeAbsent(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("CRDASH_BACKEND_URL", "")
	t.Setenv("CRDASH_MODEL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "backend: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad scheme", func(c *Config) { c.Backend.URL = "ftp://x" }, "invalid backend url"},
		{"no host", func(c *Config) { c.Backend.URL = "http://" }, "invalid backend url"},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = 0 }, "invalid backend timeout"},
		{"empty model", func(c *Config) { c.Model = " " }, "model must not be empty"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"step", func(c *Config) { c.Upload.ProgressStep = 0 }, "progress_step"},
		{"interval", func(c *Config) { c.Upload.ProgressInterval = -time.Second }, "progress_interval"},
		{"concurrency", func(c *Config) { c.Upload.ReadConcurrency = 0 }, "read_concurrency"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
