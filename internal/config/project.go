// Package config provides project configuration management.
//
// This package handles reading preview.yaml files that describe a project
// served by previewd: where the files live, where the server listens, and
// how hot reload behaves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the project configuration file.
const ConfigFileName = "preview.yaml"

// ProjectConfig represents the preview.yaml file.
type ProjectConfig struct {
	// Project contains project identification.
	Project Project `yaml:"project"`

	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server,omitempty"`

	// CDN contains third-party module proxying configuration.
	CDN CDNConfig `yaml:"cdn,omitempty"`

	// HMR contains hot reload tuning.
	HMR HMRConfig `yaml:"hmr,omitempty"`
}

// Project contains project identification.
type Project struct {
	// Name is the human-readable project name.
	Name string `yaml:"name"`

	// Root is the directory containing the project files to serve.
	// Relative paths are resolved against the config file's directory.
	Root string `yaml:"root"`

	// Entry is the HTML entry document, relative to Root.
	Entry string `yaml:"entry,omitempty"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the TCP port to listen on.
	Port int `yaml:"port,omitempty"`

	// BasePath is the URL path prefix all served modules live under.
	BasePath string `yaml:"base_path,omitempty"`
}

// CDNConfig contains third-party module proxying configuration.
type CDNConfig struct {
	// BaseURL is the ES-module CDN that bare imports are redirected to.
	BaseURL string `yaml:"base_url,omitempty"`
}

// HMRConfig contains hot reload tuning.
type HMRConfig struct {
	// WatchDebounceMs is the producer-side debounce window for coalescing
	// filesystem events into one change batch.
	WatchDebounceMs int `yaml:"watch_debounce_ms,omitempty"`

	// ReloadDebounceMs is the client-side debounce window for coalescing
	// full-reload requests into one navigation.
	ReloadDebounceMs int `yaml:"reload_debounce_ms,omitempty"`

	// SessionIdleTimeoutS is how long a session with no connected clients
	// survives before being destroyed.
	SessionIdleTimeoutS int `yaml:"session_idle_timeout_s,omitempty"`

	// MaxReconnectAttempts caps automatic client reconnection attempts.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts,omitempty"`
}

// Default values applied by Load when the config omits them.
const (
	DefaultPort                 = 7800
	DefaultBasePath             = "/preview"
	DefaultCDNBaseURL           = "https://esm.sh"
	DefaultEntry                = "index.html"
	DefaultWatchDebounce        = 50 * time.Millisecond
	DefaultReloadDebounce       = 300 * time.Millisecond
	DefaultSessionIdleTimeout   = 5 * time.Minute
	DefaultMaxReconnectAttempts = 8
)

// Load reads and validates a project configuration file.
//
// Parameters:
//   - path: Path to the preview.yaml file
//
// Returns:
//   - *ProjectConfig: The loaded configuration with defaults applied
//   - error: Any error that occurred
func Load(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	// Resolve the project root against the config file's directory so the
	// daemon can be started from anywhere.
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(filepath.Dir(path), cfg.Project.Root)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in zero-valued fields with defaults.
func (c *ProjectConfig) applyDefaults() {
	if c.Project.Root == "" {
		c.Project.Root = "."
	}
	if c.Project.Entry == "" {
		c.Project.Entry = DefaultEntry
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = DefaultBasePath
	}
	if c.CDN.BaseURL == "" {
		c.CDN.BaseURL = DefaultCDNBaseURL
	}
	if c.HMR.WatchDebounceMs == 0 {
		c.HMR.WatchDebounceMs = int(DefaultWatchDebounce / time.Millisecond)
	}
	if c.HMR.ReloadDebounceMs == 0 {
		c.HMR.ReloadDebounceMs = int(DefaultReloadDebounce / time.Millisecond)
	}
	if c.HMR.SessionIdleTimeoutS == 0 {
		c.HMR.SessionIdleTimeoutS = int(DefaultSessionIdleTimeout / time.Second)
	}
	if c.HMR.MaxReconnectAttempts == 0 {
		c.HMR.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
}

// Validate checks the configuration for errors that would prevent serving.
//
// Returns:
//   - error: The first validation failure, or nil
func (c *ProjectConfig) Validate() error {
	if c.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Server.BasePath == "" || c.Server.BasePath[0] != '/' {
		return fmt.Errorf("server.base_path must start with /")
	}
	info, err := os.Stat(c.Project.Root)
	if err != nil {
		return fmt.Errorf("project.root %q is not accessible: %w", c.Project.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project.root %q is not a directory", c.Project.Root)
	}
	return nil
}

// WatchDebounce returns the producer-side debounce window as a duration.
func (c *HMRConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}

// ReloadDebounce returns the client-side debounce window as a duration.
func (c *HMRConfig) ReloadDebounce() time.Duration {
	return time.Duration(c.ReloadDebounceMs) * time.Millisecond
}

// SessionIdleTimeout returns the idle timeout as a duration.
func (c *HMRConfig) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeoutS) * time.Second
}
