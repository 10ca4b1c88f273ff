// Package config manages the client configuration and the ~/.minard
// directory. It handles loading, saving, and initializing the config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	HomeEnv     = "MINARD_HOME"
	APIURLEnv   = "MINARD_API_URL"
	TeamIDEnv   = "MINARD_TEAM_ID"
	DefaultDir  = ".minard"
	ConfigFile  = "config"
	SessionFile = "session.db"
)

// Defaults applied when a key is missing from the file.
const (
	DefaultPageSize        = 10
	DefaultConnectingGrace = 3 * time.Second
	DefaultReconnectDelay  = 5 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
)

// Config represents the client configuration
type Config struct {
	APIURL    string `toml:"api_url"`
	StreamURL string `toml:"stream_url,omitempty"` // defaults to APIURL
	TeamID    string `toml:"team_id,omitempty"`
	PageSize  int    `toml:"page_size,omitempty"`

	// Durations are Go duration strings such as "3s".
	ConnectingGrace string `toml:"connecting_grace,omitempty"`
	ReconnectDelay  string `toml:"reconnect_delay,omitempty"`
	RequestTimeout  string `toml:"request_timeout,omitempty"`

	path string // path to the config directory
}

// Dir returns the config directory: $MINARD_HOME, or ~/.minard.
func Dir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, DefaultDir), nil
}

// Load loads the configuration and applies environment overrides.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no configuration in %s (run 'minard-sync init')", dir)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.path = dir
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(APIURLEnv); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(TeamIDEnv); v != "" {
		c.TeamID = v
	}
}

// Validate checks the configured values.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is not set")
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative, got %d", c.PageSize)
	}
	for key, v := range map[string]string{
		"connecting_grace": c.ConnectingGrace,
		"reconnect_delay":  c.ReconnectDelay,
		"request_timeout":  c.RequestTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Path returns the config directory.
func (c *Config) Path() string {
	return c.path
}

// SessionPath returns the path to the bbolt session database.
func (c *Config) SessionPath() string {
	return filepath.Join(c.path, SessionFile)
}

// EventsURL returns the base URL of the event stream.
func (c *Config) EventsURL() string {
	if c.StreamURL != "" {
		return strings.TrimRight(c.StreamURL, "/")
	}
	return strings.TrimRight(c.APIURL, "/")
}

// Pages returns the page size for commit and activity pages.
func (c *Config) Pages() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}

func (c *Config) ConnectingGraceDuration() time.Duration {
	return duration(c.ConnectingGrace, DefaultConnectingGrace)
}

func (c *Config) ReconnectDelayDuration() time.Duration {
	return duration(c.ReconnectDelay, DefaultReconnectDelay)
}

func (c *Config) RequestTimeoutDuration() time.Duration {
	return duration(c.RequestTimeout, DefaultRequestTimeout)
}

func duration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Initialize creates the config directory with an initial configuration
func Initialize(apiURL, teamID string) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(configPath); err == nil {
		return nil, fmt.Errorf("configuration already exists at %s", configPath)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		APIURL: apiURL,
		TeamID: teamID,
		path:   dir,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(); err != nil {
		return nil, err
	}
	return cfg, nil
}
