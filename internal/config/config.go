// Package config loads crdash settings from a YAML file, the environment and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete crdash configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Model   string        `yaml:"model"`
	Server  ServerConfig  `yaml:"server"`
	Upload  UploadConfig  `yaml:"upload"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig points at the analysis service.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig is the listen address of the dashboard API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Port int    `yaml:"port"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Addr, s.Port)
}

// UploadConfig tunes file registration.
type UploadConfig struct {
	ProgressStep     int           `yaml:"progress_step"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	ReadConcurrency  int           `yaml:"read_concurrency"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlogLevel converts the configured level name.
func (l LogConfig) SlogLevel() slog.Level {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lv
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8000",
			Timeout: 120 * time.Second,
		},
		Model: "gpt-4o",
		Server: ServerConfig{
			Addr: "127.0.0.1",
			Port: 6142,
		},
		Upload: UploadConfig{
			ProgressStep:     10,
			ProgressInterval: 100 * time.Millisecond,
			ReadConcurrency:  4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "crdash", "config.yaml")
}

// Load reads the config file at path over the defaults and applies
// environment overrides. An empty path means DefaultPath, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loading config from %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file into cfg. Keys missing from the file keep
// their current values.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CRDASH_BACKEND_URL")); v != "" {
		cfg.Backend.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("CRDASH_MODEL")); v != "" {
		cfg.Model = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend url: %q (must be an http or https URL)", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("invalid backend timeout: %s (must be positive)", c.Backend.Timeout)
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model must not be empty")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Upload.ProgressStep < 1 || c.Upload.ProgressStep > 100 {
		return fmt.Errorf("invalid upload progress_step: %d (valid: 1-100)", c.Upload.ProgressStep)
	}
	if c.Upload.ProgressInterval <= 0 {
		return fmt.Errorf("invalid upload progress_interval: %s (must be positive)", c.Upload.ProgressInterval)
	}
	if c.Upload.ReadConcurrency < 1 {
		return fmt.Errorf("invalid upload read_concurrency: %d (must be at least 1)", c.Upload.ReadConcurrency)
	}

	var lv slog.Level
	if err := lv.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Log.Format)
	}
	return nil
}
