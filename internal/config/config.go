// Package config loads mbdash settings from a YAML or TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	EnvURL       = "MBDASH_URL"
	EnvToken     = "MBDASH_TOKEN"
	EnvTokenFile = "MBDASH_TOKEN_FILE"
)

type Config struct {
	Server ServerConfig `yaml:"server" toml:"server"`
	Stream StreamConfig `yaml:"stream" toml:"stream"`
	Log    LogConfig    `yaml:"log" toml:"log"`
	UI     UIConfig     `yaml:"ui" toml:"ui"`
}

type ServerConfig struct {
	URL       string `yaml:"url" toml:"url"`
	Token     string `yaml:"token" toml:"token"`
	TokenFile string `yaml:"token_file" toml:"token_file"`
}

type StreamConfig struct {
	BackoffBase    Duration `yaml:"backoff_base" toml:"backoff_base"`
	BackoffCeiling Duration `yaml:"backoff_ceiling" toml:"backoff_ceiling"`
	ConnectTimeout Duration `yaml:"connect_timeout" toml:"connect_timeout"`
	AuthTimeout    Duration `yaml:"auth_timeout" toml:"auth_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"`
}

type UIConfig struct {
	MaxLines int `yaml:"max_lines" toml:"max_lines"`
}

// Duration decodes "5s"-style strings from both YAML and TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:29316",
		},
		Stream: StreamConfig{
			BackoffBase:    Duration{5 * time.Second},
			BackoffCeiling: Duration{30 * time.Second},
			ConnectTimeout: Duration{10 * time.Second},
			AuthTimeout:    Duration{10 * time.Second},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		UI: UIConfig{
			MaxLines: 1000,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config { return defaultConfig() }

// DefaultPath returns ~/.config/mbdash/config.yaml (or the platform
// equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mbdash.yaml"
	}
	return filepath.Join(dir, "mbdash", "config.yaml")
}

// Load reads the config file at path over the defaults. Files ending in
// .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// ApplyEnv overrides server settings from MBDASH_URL, MBDASH_TOKEN and
// MBDASH_TOKEN_FILE. A token from the environment replaces a token file from
// the config and vice versa.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvURL); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.Server.Token = v
		c.Server.TokenFile = ""
	}
	if v := os.Getenv(EnvTokenFile); v != "" {
		c.Server.TokenFile = v
		c.Server.Token = ""
	}
}

// Validate checks the server URL and every duration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("server.url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.url: missing host")
	}

	durations := []struct {
		name string
		d    Duration
	}{
		{"stream.backoff_base", c.Stream.BackoffBase},
		{"stream.backoff_ceiling", c.Stream.BackoffCeiling},
		{"stream.connect_timeout", c.Stream.ConnectTimeout},
		{"stream.auth_timeout", c.Stream.AuthTimeout},
	}
	for _, d := range durations {
		if d.d.Duration <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.d.Duration)
		}
	}
	if c.Stream.BackoffCeiling.Duration < c.Stream.BackoffBase.Duration {
		return fmt.Errorf("stream.backoff_ceiling (%s) is below stream.backoff_base (%s)",
			c.Stream.BackoffCeiling.Duration, c.Stream.BackoffBase.Duration)
	}
	if c.UI.MaxLines <= 0 {
		return fmt.Errorf("ui.max_lines must be positive, got %d", c.UI.MaxLines)
	}
	return nil
}
