// Package commands implements the ui4t subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/ui4t/internal/config"
	"github.com/leapstack-labs/ui4t/internal/seed"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Runtime is what the root command prepares for every subcommand.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger
	FS     afero.Fs
	// Env resolves warehouse credentials (os.LookupEnv when nil).
	Env config.LookupFunc
}

type runtimeKey struct{}

// WithRuntime stores rt in ctx.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// RuntimeFrom returns the runtime stored in ctx, or a default one.
func RuntimeFrom(ctx context.Context) *Runtime {
	if rt, ok := ctx.Value(runtimeKey{}).(*Runtime); ok {
		return rt
	}
	return &Runtime{
		Config: &config.Config{
			LogDir:    config.DefaultLogDir,
			StatePath: config.DefaultStatePath,
			TestDir:   config.DefaultTestDir,
			Retry: config.RetryConfig{
				Attempts:  config.DefaultAttempts,
				BaseDelay: config.DefaultBaseDelay,
				MaxDelay:  config.DefaultMaxDelay,
			},
		},
		Logger: slog.New(slog.DiscardHandler),
		FS:     afero.NewOsFs(),
	}
}

func (rt *Runtime) retryPolicy() seed.RetryPolicy {
	return seed.RetryPolicy{
		Attempts:  rt.Config.Retry.Attempts,
		BaseDelay: rt.Config.Retry.BaseDelay,
		MaxDelay:  rt.Config.Retry.MaxDelay,
	}
}

// warehouse resolves a --warehouse value. Unknown names are usage errors.
func (rt *Runtime) warehouse(name string) (core.AdapterConfig, error) {
	if !config.KnownWarehouse(name) {
		return core.AdapterConfig{}, Usagef("unknown warehouse %q (want one of %v)", name, config.Warehouses)
	}
	return config.Warehouse(name, rt.Env)
}

// UsageError marks a command-line mistake. The process exits with code 2.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Usagef returns a *UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// usageArgs turns positional-argument errors into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}
