package config

import "time"

// Default configuration values.
const (
	DefaultConfigFile = "ui4t.yaml"
	DefaultLogDir     = "logs"
	DefaultStatePath  = ".ui4t/state.db"
	DefaultTestDir    = "testdata/integration"
	DefaultAttempts   = 5
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second

	// EnvPrefix prefixes every general-setting environment variable.
	EnvPrefix = "UI4T_"
)

func defaults() map[string]any {
	return map[string]any{
		"log_dir":          DefaultLogDir,
		"state_path":       DefaultStatePath,
		"test_dir":         DefaultTestDir,
		"fixtures":         []string{},
		"verbose":          false,
		"parallel":         0,
		"retry.attempts":   DefaultAttempts,
		"retry.base_delay": DefaultBaseDelay.String(),
		"retry.max_delay":  DefaultMaxDelay.String(),
	}
}
