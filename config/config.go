// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads viewstore settings from YAML.
//
// Config file locations (priority order):
//  1. $VIEWSTORE_CONFIG
//  2. ./viewstore.yaml
//  3. $XDG_CONFIG_HOME/viewstore/config.yaml
//  4. ~/.config/viewstore/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath names the environment variable holding an explicit
	// config file path.
	EnvConfigPath = "VIEWSTORE_CONFIG"

	// ConfigFileName is looked up in the working directory.
	ConfigFileName = "viewstore.yaml"

	// ConfigDirName is the directory under the user's config home.
	ConfigDirName = "viewstore"
)

// Backend tags.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// ErrUnknownBackend is returned for a backend tag no adapter implements.
var ErrUnknownBackend = errors.New("unknown backend")

// Config holds all viewstore settings.
type Config struct {
	Backend string        `yaml:"backend"`
	Badger  BadgerConfig  `yaml:"badger,omitempty"`
	SQLite  SQLiteConfig  `yaml:"sqlite,omitempty"`
	File    FileConfig    `yaml:"file,omitempty"`
	Connect ConnectConfig `yaml:"connect,omitempty"`
}

// BadgerConfig holds settings for the badger backend.
type BadgerConfig struct {
	Path     string `yaml:"path,omitempty"`
	InMemory bool   `yaml:"in_memory,omitempty"`
}

// SQLiteConfig holds settings for the sqlite backend.
type SQLiteConfig struct {
	Path string `yaml:"path,omitempty"`
}

// FileConfig holds settings for the single-file backend. An empty path
// keeps data in memory.
type FileConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ConnectConfig bounds connection establishment.
type ConnectConfig struct {
	Timeout     Duration `yaml:"timeout,omitempty"`
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	BaseDelay   Duration `yaml:"base_delay,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() *Config {
	cfg := &Config{Backend: BackendMemory}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	c.Backend = NormalizeBackend(c.Backend)
	if c.Backend == BackendBadger && c.Badger.Path == "" {
		c.Badger.InMemory = true
	}
	if c.Backend == BackendSQLite && c.SQLite.Path == "" {
		c.SQLite.Path = ":memory:"
	}
	if c.Connect.Timeout == 0 {
		c.Connect.Timeout = Duration(10 * time.Second)
	}
	if c.Connect.MaxAttempts == 0 {
		c.Connect.MaxAttempts = 5
	}
	if c.Connect.BaseDelay == 0 {
		c.Connect.BaseDelay = Duration(100 * time.Millisecond)
	}
}

// Validate reports settings no backend can run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendBadger, BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if c.Connect.Timeout < 0 {
		return fmt.Errorf("connect timeout must not be negative")
	}
	if c.Connect.MaxAttempts < 0 {
		return fmt.Errorf("connect max_attempts must not be negative")
	}
	if c.Connect.BaseDelay < 0 {
		return fmt.Errorf("connect base_delay must not be negative")
	}
	return nil
}

// NormalizeBackend lower-cases a backend tag and maps aliases to their
// canonical name.
func NormalizeBackend(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch tag {
	case "inmemory", "mem":
		return BackendMemory
	case "sqlite3":
		return BackendSQLite
	case "tingodb", "filestore":
		return BackendFile
	}
	return tag
}

// FindConfigPath searches for config file in priority order. Returns empty
// string if no config file found
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
