// Package seed loads fixture sets into warehouse targets.
//
// Seeding is idempotent: every table of a set is dropped and recreated on
// each run. Progress is recorded in a per-schema manifest table so a
// verifier can refuse to run against a partially seeded schema.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/ui4t/internal/fixture"
	"github.com/leapstack-labs/ui4t/pkg/adapter"
	"github.com/leapstack-labs/ui4t/pkg/core"
)

// Seeder loads fixture sets into warehouse targets.
type Seeder struct {
	logger *slog.Logger
	retry  RetryPolicy
	now    func() time.Time
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithRetry sets the retry policy for transient failures.
func WithRetry(p RetryPolicy) Option {
	return func(s *Seeder) { s.retry = p }
}

// WithClock sets the clock used for manifest timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

// New creates a Seeder. If logger is nil, a discard logger is used.
func New(logger *slog.Logger, opts ...Option) *Seeder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Seeder{logger: logger, retry: DefaultRetryPolicy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result summarizes one seeded fixture set.
type Result struct {
	Target     string
	FixtureSet string
	Tables     int
	Rows       int64
	Duration   time.Duration
}

// Seed loads every table of set into the target schema. Failures are
// returned as *core.SeedFailure; when at least one table was loaded the
// set is marked partial in the manifest.
func (s *Seeder) Seed(ctx context.Context, target *adapter.Target, set *fixture.Set) (*Result, error) {
	start := time.Now()
	logger := s.logger.With(slog.String("target", target.Name), slog.String("fixture_set", set.Name))
	res := &Result{Target: target.Name, FixtureSet: set.Name}

	fail := func(table string, err error) (*Result, error) {
		partial := res.Tables > 0
		if partial {
			s.mark(ctx, target, logger, ManifestEntry{FixtureSet: set.Name, Status: StatusPartial, Tables: int64(res.Tables), Rows: res.Rows})
		}
		logger.Error("seeding failed", slog.String("table", table), slog.Int("tables_loaded", res.Tables), slog.Any("error", err))
		return res, &core.SeedFailure{
			Target:     target.Name,
			FixtureSet: set.Name,
			Table:      table,
			Partial:    partial,
			Transient:  target.Adapter.IsTransient(err),
			Err:        err,
		}
	}

	d := target.Dialect()
	if stmt := d.CreateSchemaSQL(target.Schema); stmt != "" {
		if err := s.exec(ctx, target, stmt); err != nil {
			return fail("", fmt.Errorf("failed to create schema %s: %w", target.Schema, err))
		}
	}
	stmt, err := ensureManifestSQL(target)
	if err != nil {
		return fail("", err)
	}
	if err := s.exec(ctx, target, stmt); err != nil {
		return fail("", fmt.Errorf("failed to create fixture manifest: %w", err))
	}
	if err := s.markStrict(ctx, target, ManifestEntry{FixtureSet: set.Name, Status: StatusLoading}); err != nil {
		return fail("", err)
	}

	for _, t := range set.Tables {
		n, err := s.loadTable(ctx, target, t)
		if err != nil {
			return fail(t.Name, err)
		}
		res.Tables++
		res.Rows += n
		logger.Debug("table seeded", slog.String("table", t.Name), slog.Int64("rows", n))
	}

	if err := s.markStrict(ctx, target, ManifestEntry{FixtureSet: set.Name, Status: StatusComplete, Tables: int64(res.Tables), Rows: res.Rows}); err != nil {
		return fail("", err)
	}
	res.Duration = time.Since(start)
	logger.Info("fixture set seeded", slog.Int("tables", res.Tables), slog.Int64("rows", res.Rows), slog.Duration("duration", res.Duration))
	return res, nil
}

func (s *Seeder) loadTable(ctx context.Context, target *adapter.Target, t *fixture.Table) (int64, error) {
	d := target.Dialect()
	ref := target.Ref(t.Name)
	create, err := d.CreateTableSQL(ref, t.Schema)
	if err != nil {
		return 0, err
	}
	if err := s.exec(ctx, target, d.DropTableSQL(ref)); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", ref, err)
	}
	if err := s.exec(ctx, target, create); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", ref, err)
	}
	if len(t.Rows) == 0 {
		return 0, nil
	}

	// A retried load starts from an empty table.
	var loaded int64
	err = s.retry.Do(ctx, target.Adapter.IsTransient, func(ctx context.Context) error {
		n, err := target.Adapter.LoadRows(ctx, ref, t.Schema, t.Rows)
		if err != nil && n > 0 {
			if terr := target.Adapter.Exec(ctx, "DELETE FROM "+d.QualifyRef(ref)+" WHERE TRUE"); terr != nil {
				return fmt.Errorf("%w (cleanup after partial load failed: %v)", err, terr)
			}
		}
		loaded = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load rows into %s: %w", ref, err)
	}
	return loaded, nil
}

func (s *Seeder) exec(ctx context.Context, target *adapter.Target, stmt string) error {
	return s.retry.Do(ctx, target.Adapter.IsTransient, func(ctx context.Context) error {
		return target.Adapter.Exec(ctx, stmt)
	})
}

func (s *Seeder) markStrict(ctx context.Context, target *adapter.Target, e ManifestEntry) error {
	e.SeededAt = s.now().UTC()
	stmts, err := markSQL(target, e)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := s.exec(ctx, target, stmt); err != nil {
			return fmt.Errorf("failed to mark fixture set %s %s: %w", e.FixtureSet, e.Status, err)
		}
	}
	return nil
}

// mark is markStrict for failure paths, where the original error matters more.
func (s *Seeder) mark(ctx context.Context, target *adapter.Target, logger *slog.Logger, e ManifestEntry) {
	if err := s.markStrict(ctx, target, e); err != nil {
		logger.Warn("failed to update fixture manifest", slog.Any("error", err))
	}
}
