// Package config loads and validates the qbank configuration file.
// The file is JSON; missing fields fall back to defaults so a minimal
// config stays minimal.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clawinfra/qbank/internal/qlearn"
	"github.com/clawinfra/qbank/internal/qstore"
	"github.com/clawinfra/qbank/internal/reward"
	"github.com/clawinfra/qbank/internal/scheduler"
)

// Config holds all qbank configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Q-value store settings
	Store StoreConfig `json:"store"`

	// Exploration parameters shared by every local learner instance
	Learning qlearn.Config `json:"learning"`

	// Reward weighting
	Reward RewardConfig `json:"reward"`

	// Action space manifests
	Actions ActionsConfig `json:"actions,omitempty"`

	// Maintenance jobs
	Scheduler scheduler.Config `json:"scheduler,omitempty"`
}

type ServerConfig struct {
	DataDir  string `json:"dataDir"`
	LogLevel string `json:"logLevel"`
}

// StoreConfig mirrors qstore.Config with durations in milliseconds
// for JSON friendliness.
type StoreConfig struct {
	Path             string `json:"path"`
	MaxOpenConns     int    `json:"maxOpenConns"`
	MaxIdleConns     int    `json:"maxIdleConns"`
	BusyTimeoutMs    int64  `json:"busyTimeoutMs"`
	OpTimeoutMs      int64  `json:"opTimeoutMs"`
	MaxRetries       int    `json:"maxRetries"`
	RetryBaseDelayMs int64  `json:"retryBaseDelayMs"`
}

// ToStoreConfig converts to the store's native config.
func (s StoreConfig) ToStoreConfig() qstore.Config {
	return qstore.Config{
		Path:           s.Path,
		MaxOpenConns:   s.MaxOpenConns,
		MaxIdleConns:   s.MaxIdleConns,
		BusyTimeout:    time.Duration(s.BusyTimeoutMs) * time.Millisecond,
		OpTimeout:      time.Duration(s.OpTimeoutMs) * time.Millisecond,
		MaxRetries:     s.MaxRetries,
		RetryBaseDelay: time.Duration(s.RetryBaseDelayMs) * time.Millisecond,
	}
}

type RewardConfig struct {
	// Weights used when no profile is configured. Zero-value means
	// the built-in defaults.
	Weights reward.Weights `json:"weights,omitempty"`

	// ProfilePath points to a YAML weight profile with optional
	// per-agent-type overrides.
	ProfilePath string `json:"profilePath,omitempty"`
}

type ActionsConfig struct {
	// ManifestDir holds per-agent-type actions.toml overrides.
	ManifestDir string `json:"manifestDir,omitempty"`
}

// DefaultDataDir returns ~/.qbank, falling back to ./.qbank when the
// home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".qbank")
	}
	return filepath.Join(home, ".qbank")
}

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Server: ServerConfig{
			DataDir:  dataDir,
			LogLevel: "info",
		},
		Store: StoreConfig{
			Path:             filepath.Join(dataDir, "qbank.db"),
			MaxOpenConns:     8,
			MaxIdleConns:     2,
			BusyTimeoutMs:    5000,
			OpTimeoutMs:      10000,
			MaxRetries:       4,
			RetryBaseDelayMs: 50,
		},
		Learning: qlearn.DefaultConfig(),
	}
}

// Load reads the config file at path, applying defaults for missing
// fields and validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Server.DataDir == "" {
		return fmt.Errorf("config: server.dataDir required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("config: store.path required")
	}
	if c.Store.MaxOpenConns < 1 {
		return fmt.Errorf("config: store.maxOpenConns must be at least 1")
	}
	if c.Store.MaxIdleConns < 0 || c.Store.MaxIdleConns > c.Store.MaxOpenConns {
		return fmt.Errorf("config: store.maxIdleConns must be between 0 and maxOpenConns")
	}
	if c.Store.MaxRetries < 1 {
		return fmt.Errorf("config: store.maxRetries must be at least 1")
	}
	if err := c.Learning.Validate(); err != nil {
		return fmt.Errorf("config: learning: %w", err)
	}
	for _, job := range c.Scheduler.Jobs {
		if err := job.Validate(); err != nil {
			return fmt.Errorf("config: scheduler job %q: %w", job.ID, err)
		}
	}
	return nil
}

// Save writes the config as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
