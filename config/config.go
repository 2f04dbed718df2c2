// Package config carries the tunable settings of the chatstore environment:
// file locations, map sizing, transaction instrumentation thresholds and
// retention caps. Settings load from an optional YAML file with environment
// variable overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the persistence core. The zero value is not
// usable; start from Default().
type Config struct {
	// Path is the bbolt data file location.
	Path string `yaml:"path"`

	// InitialMmapSizeMB sizes the initial memory map of the environment.
	InitialMmapSizeMB int `yaml:"initial_mmap_size_mb"`

	// ConservativeMmapSizeMB is the reduced map size used when reopening
	// after corruption recovery.
	ConservativeMmapSizeMB int `yaml:"conservative_mmap_size_mb"`

	// LockTimeout bounds how long opening waits for the file lock held by
	// another process.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// SlowTxnThreshold is the transaction duration past which a warning is
	// logged. Observability only; transactions are never cancelled.
	SlowTxnThreshold time.Duration `yaml:"slow_txn_threshold"`

	// InitBudget is the environment initialization duration past which a
	// warning is logged.
	InitBudget time.Duration `yaml:"init_budget"`

	// MaxMessagesPerSession is the retention cap applied by message sweeps.
	MaxMessagesPerSession int `yaml:"max_messages_per_session"`

	// ContextSweepBatch bounds how many expired contexts are deleted per
	// write transaction during a TTL sweep.
	ContextSweepBatch int `yaml:"context_sweep_batch"`
}

// Default returns the baseline configuration suitable for local development.
func Default() *Config {
	return &Config{
		Path:                   "data/chatstore.db",
		InitialMmapSizeMB:      64,
		ConservativeMmapSizeMB: 16,
		LockTimeout:            1 * time.Second,
		SlowTxnThreshold:       1 * time.Second,
		InitBudget:             5 * time.Second,
		MaxMessagesPerSession:  1000,
		ContextSweepBatch:      100,
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Path = getEnv("CHATSTORE_PATH", c.Path)
	c.InitialMmapSizeMB = getIntEnv("CHATSTORE_MMAP_MB", c.InitialMmapSizeMB)
	c.MaxMessagesPerSession = getIntEnv("CHATSTORE_MAX_MESSAGES", c.MaxMessagesPerSession)
	c.ContextSweepBatch = getIntEnv("CHATSTORE_SWEEP_BATCH", c.ContextSweepBatch)
	c.SlowTxnThreshold = getDurationEnv("CHATSTORE_SLOW_TXN", c.SlowTxnThreshold)
}

// Validate rejects settings the environment cannot operate with.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("config: path must not be empty")
	}
	if c.InitialMmapSizeMB <= 0 || c.ConservativeMmapSizeMB <= 0 {
		return fmt.Errorf("config: mmap sizes must be positive")
	}
	if c.MaxMessagesPerSession < 0 {
		return fmt.Errorf("config: max_messages_per_session must not be negative")
	}
	if c.ContextSweepBatch <= 0 {
		return fmt.Errorf("config: context_sweep_batch must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
