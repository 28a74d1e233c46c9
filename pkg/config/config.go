// Package config loads the nodeview configuration file (.nodeview/config.yaml).
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DirName is the project-local configuration directory.
	DirName = ".nodeview"
	// FileName is the configuration file inside DirName.
	FileName = "config.yaml"

	DefaultServerURL  = "http://localhost:8080"
	DefaultTimeout    = 10 * time.Second
	DefaultSplitRatio = 0.4
	DefaultLogLevel   = "info"
)

// Environment variables that override the file.
const (
	EnvServer   = "NV_SERVER"
	EnvUser     = "NV_USER"
	EnvPassword = "NV_PASSWORD"
)

// Config represents a nodeview configuration file.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth,omitempty"`
	UI     UIConfig     `yaml:"ui"`
	Log    LogConfig    `yaml:"log,omitempty"`

	// StateDir holds the expanded-tree state and the log file.
	// Relative paths resolve against the directory holding the config file.
	StateDir string `yaml:"state_dir,omitempty"`

	// Path is the file this config was loaded from ("" for defaults).
	Path string `yaml:"-"`
}

// ServerConfig points at the repository server.
type ServerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// AuthConfig holds the login identity. The password is never written to disk.
type AuthConfig struct {
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"-"`
}

// UIConfig controls the interactive browser.
type UIConfig struct {
	// RememberExpanded persists expanded paths between sessions.
	RememberExpanded bool `yaml:"remember_expanded"`

	// SplitRatio is the share of the width given to the tree pane.
	SplitRatio float64 `yaml:"split_ratio,omitempty"`
}

// LogConfig controls the log file used while the TUI owns the terminal.
type LogConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Server: ServerConfig{URL: DefaultServerURL, Timeout: DefaultTimeout},
		UI:     UIConfig{RememberExpanded: true, SplitRatio: DefaultSplitRatio},
		Log:    LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Path = path
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads the explicit path if given, else the discovered project
// config, else the user config, else the defaults.
func Resolve(explicit string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if path, err := Find(""); err == nil {
		return Load(path)
	}
	if path := UserPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

// fillDefaults restores defaults for fields a file set to their zero value.
func (c *Config) fillDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultTimeout
	}
	if c.UI.SplitRatio == 0 {
		c.UI.SplitRatio = DefaultSplitRatio
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.url: missing host")
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout: must not be negative")
	}
	if c.UI.SplitRatio < 0.2 || c.UI.SplitRatio > 0.8 {
		return fmt.Errorf("ui.split_ratio: %.2f outside 0.2-0.8", c.UI.SplitRatio)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv
// outside of tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvServer); v != "" {
		c.Server.URL = v
	}
	if v := getenv(EnvUser); v != "" {
		c.Auth.Username = v
	}
	if v := getenv(EnvPassword); v != "" {
		c.Auth.Password = v
	}
}

// ResolvedStateDir returns the absolute-or-relative directory for state
// files. Without a configured value it is .nodeview/state next to a project
// config, or the user cache directory.
func (c *Config) ResolvedStateDir() string {
	base := ""
	if c.Path != "" {
		base = filepath.Dir(c.Path)
	}
	if c.StateDir != "" {
		if filepath.IsAbs(c.StateDir) || base == "" {
			return expandHome(c.StateDir)
		}
		return filepath.Join(base, c.StateDir)
	}
	if base != "" && filepath.Base(base) == DirName {
		return filepath.Join(base, "state")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "nodeview")
	}
	return filepath.Join(DirName, "state")
}

// LogFile returns the log file path used while the TUI is running.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	return filepath.Join(c.ResolvedStateDir(), "nv.log")
}

// Write saves cfg to path, creating parent directories.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// UserPath returns $XDG_CONFIG_HOME/nodeview/config.yaml (or the platform
// equivalent), or "" if it cannot be determined.
func UserPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nodeview", FileName)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
