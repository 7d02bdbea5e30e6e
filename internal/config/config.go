// Package config handles configuration file parsing and hot-reloading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Name string `yaml:"name"`

	// Connections to browse. SQLite connections may name a file, a
	// directory or a glob.
	Connections []ConnectionConfig `yaml:"connections"`

	Grid    GridConfig    `yaml:"grid"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`

	// Internal: path to the config file
	path string

	// Internal: last modified time
	modTime time.Time

	mu sync.RWMutex
}

// ConnectionConfig describes one database connection.
type ConnectionConfig struct {
	Name        string `yaml:"name"`
	Driver      string `yaml:"driver"` // sqlite, postgres or mysql
	Description string `yaml:"description"`
	ReadOnly    bool   `yaml:"read_only"`

	// SQLite
	Path      string `yaml:"path"`
	Recursive bool   `yaml:"recursive"`

	// Server databases. DSN wins over the individual fields.
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`

	// SSH, when set, reaches Host and Port through an SSH server.
	SSH *SSHConfig `yaml:"ssh"`
}

// SSHConfig describes the SSH server a connection is tunnelled through.
// Host and Port of the connection are resolved on that server.
type SSHConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"` // 22 when unset
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	KeyPath    string `yaml:"key_path"`
	Passphrase string `yaml:"passphrase"`
	// KnownHosts is a known_hosts file the server key is checked
	// against. Without it any host key is accepted.
	KnownHosts string `yaml:"known_hosts"`
}

// GridConfig tunes the data grid.
type GridConfig struct {
	MinColumnWidth     int    `yaml:"min_column_width"`
	DefaultColumnWidth int    `yaml:"default_column_width"`
	MaxColumnWidth     int    `yaml:"max_column_width"`
	Overscan           int    `yaml:"overscan"`
	FrameInterval      string `yaml:"frame_interval"`
	DoubleClick        string `yaml:"double_click"`
	PageSize           int    `yaml:"page_size"`
}

// HistoryConfig controls the query history and audit log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DataDir string `yaml:"data_dir"`
	Limit   int    `yaml:"limit"`
}

// LogConfig controls the log file.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:        "dbgrid",
		Connections: []ConnectionConfig{},
		Grid: GridConfig{
			MinColumnWidth:     4,
			DefaultColumnWidth: 16,
			MaxColumnWidth:     40,
			Overscan:           2,
			FrameInterval:      "16ms",
			DoubleClick:        "400ms",
			PageSize:           500,
		},
		History: HistoryConfig{
			Enabled: true,
			DataDir: defaultDataDir(),
			Limit:   200,
		},
		Log: LogConfig{
			File:  filepath.Join(defaultDataDir(), "dbgrid.log"),
			Level: "info",
		},
	}
}

// DefaultPath returns the config file used when --config is not given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".dbgrid", "config.yaml")
	}
	return filepath.Join(dir, "dbgrid", "config.yaml")
}

func defaultDataDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".dbgrid"
	}
	return filepath.Join(dir, "dbgrid")
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.path = absPath

	info, err := os.Stat(absPath)
	if err == nil {
		cfg.modTime = info.ModTime()
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to the defaults when the file does
// not exist. The returned config still remembers path so it can be watched
// once the file is created.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		return nil, err
	}
	cfg = DefaultConfig()
	if abs, absErr := filepath.Abs(path); absErr == nil {
		cfg.path = abs
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for i, conn := range c.Connections {
		if conn.Name == "" {
			return fmt.Errorf("connection %d: name is required", i+1)
		}
		if seen[conn.Name] {
			return fmt.Errorf("connection %q: duplicate name", conn.Name)
		}
		seen[conn.Name] = true

		switch conn.Driver {
		case "", "sqlite":
			if conn.Path == "" {
				return fmt.Errorf("connection %q: path is required for sqlite", conn.Name)
			}
		case "postgres", "mysql":
			if conn.DSN == "" && conn.Host == "" {
				return fmt.Errorf("connection %q: dsn or host is required", conn.Name)
			}
		default:
			return fmt.Errorf("connection %q: unknown driver %q", conn.Name, conn.Driver)
		}
		if conn.SSH != nil {
			if err := conn.validateSSH(); err != nil {
				return fmt.Errorf("connection %q: %w", conn.Name, err)
			}
		}
	}
	if c.Grid.MinColumnWidth < 1 {
		c.Grid.MinColumnWidth = 1
	}
	return nil
}

func (c ConnectionConfig) validateSSH() error {
	switch {
	case c.Driver != "postgres" && c.Driver != "mysql":
		return errors.New("ssh needs a postgres or mysql connection")
	case c.DSN != "" || c.Host == "":
		return errors.New("ssh needs host instead of dsn")
	case c.SSH.Host == "":
		return errors.New("ssh host is required")
	case c.SSH.User == "":
		return errors.New("ssh user is required")
	case c.SSH.Password == "" && c.SSH.KeyPath == "":
		return errors.New("ssh password or key_path is required")
	}
	return nil
}

// Path returns the path to the config file.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Reload reloads the configuration from disk. On error the current values
// are kept.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	newCfg, err := parse(data)
	if err != nil {
		return err
	}

	c.Name = newCfg.Name
	c.Connections = newCfg.Connections
	c.Grid = newCfg.Grid
	c.History = newCfg.History
	c.Log = newCfg.Log

	info, err := os.Stat(c.path)
	if err == nil {
		c.modTime = info.ModTime()
	}

	return nil
}

// HasChanged checks if the config file has been modified.
func (c *Config) HasChanged() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, err := os.Stat(c.path)
	if err != nil {
		return false
	}
	return info.ModTime().After(c.modTime)
}

// GetConnections returns a copy of the configured connections.
func (c *Config) GetConnections() []ConnectionConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ConnectionConfig, len(c.Connections))
	copy(out, c.Connections)
	return out
}

// AddConnection appends a connection for this run only. It is never
// written back to the file.
func (c *Config) AddConnection(conn ConnectionConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.Connections {
		if c.Connections[i].Name == conn.Name {
			c.Connections[i] = conn
			return
		}
	}
	c.Connections = append(c.Connections, conn)
}

// GetGrid returns the grid settings.
func (c *Config) GetGrid() GridConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Grid
}

// GetHistory returns the history settings.
func (c *Config) GetHistory() HistoryConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.History
}

// GetLog returns the log settings.
func (c *Config) GetLog() LogConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Log
}

// FrameIntervalDuration parses the frame interval, defaulting to 16ms.
func (g GridConfig) FrameIntervalDuration() time.Duration {
	return parseDuration(g.FrameInterval, 16*time.Millisecond)
}

// DoubleClickDuration parses the double click window, defaulting to 400ms.
func (g GridConfig) DoubleClickDuration() time.Duration {
	return parseDuration(g.DoubleClick, 400*time.Millisecond)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
