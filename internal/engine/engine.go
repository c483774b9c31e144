// Package engine runs integration cases against warehouse targets.
//
// Each target runs its pipeline in its own goroutine: connect, seed every
// fixture set its cases need, then compile and verify each case. Targets
// share nothing mutable except the artifact cache and the result suite,
// and a failing target never cancels the others.
package engine

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/ui4t/internal/seed"
	"github.com/leapstack-labs/ui4t/internal/state"
	"github.com/leapstack-labs/ui4t/internal/verify"
	"github.com/leapstack-labs/ui4t/pkg/adapter"
	"github.com/leapstack-labs/ui4t/pkg/adapters"
	"github.com/leapstack-labs/ui4t/pkg/codegen"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/spf13/afero"
)

// Ledger records run history. *state.SQLiteStore implements it.
type Ledger interface {
	CreateRun(ctx context.Context, target string) (*state.Run, error)
	CompleteRun(ctx context.Context, id string, status state.RunStatus, errMsg string) error
	RecordCase(ctx context.Context, r *state.CaseResult) error
}

// OpenFunc creates an unconnected adapter for a warehouse config.
type OpenFunc func(cfg core.AdapterConfig, logger *slog.Logger) (adapter.Adapter, error)

// Config holds engine configuration.
type Config struct {
	// FS reads case, spec and fixture files (the OS filesystem when nil).
	FS afero.Fs
	// Ledger is optional; without one no history is written.
	Ledger Ledger
	// Retry bounds connection and seeding retries.
	Retry seed.RetryPolicy
	// Parallel bounds concurrently running targets; 0 means all.
	Parallel int
	// Open defaults to adapters.New.
	Open OpenFunc
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine runs cases against targets.
type Engine struct {
	fs       afero.Fs
	ledger   Ledger
	retry    seed.RetryPolicy
	parallel int
	open     OpenFunc
	logger   *slog.Logger

	seeder   *seed.Seeder
	verifier *verify.Verifier
	cache    *codegen.Cache
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsys := cfg.FS
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	open := cfg.Open
	if open == nil {
		open = adapters.New
	}
	retry := cfg.Retry
	if retry.Attempts == 0 {
		retry = seed.DefaultRetryPolicy
	}
	return &Engine{
		fs:       fsys,
		ledger:   cfg.Ledger,
		retry:    retry,
		parallel: cfg.Parallel,
		open:     open,
		logger:   logger,
		seeder:   seed.New(logger, seed.WithRetry(retry)),
		verifier: verify.New(logger),
		cache:    codegen.NewCache(),
	}
}

// Cache returns the artifact cache shared by every target.
func (e *Engine) Cache() *codegen.Cache {
	return e.cache
}
