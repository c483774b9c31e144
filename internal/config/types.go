// Package config loads ui4t settings.
//
// General settings are layered with koanf: built-in defaults, then ui4t.yaml,
// then UI4T_* environment variables, then explicitly set command-line flags.
// Warehouse credentials come only from the environment (see Warehouse).
package config

import "time"

// Config holds all general settings.
type Config struct {
	LogDir    string   `koanf:"log_dir"`
	StatePath string   `koanf:"state_path"`
	TestDir   string   `koanf:"test_dir"`
	Fixtures  []string `koanf:"fixtures"`
	Verbose   bool     `koanf:"verbose"`
	// Parallel bounds how many warehouse targets run at once; 0 means all.
	Parallel int         `koanf:"parallel"`
	Retry    RetryConfig `koanf:"retry"`
}

// RetryConfig bounds retries of transient warehouse failures.
type RetryConfig struct {
	Attempts  uint64        `koanf:"attempts"`
	BaseDelay time.Duration `koanf:"base_delay"`
	MaxDelay  time.Duration `koanf:"max_delay"`
}
