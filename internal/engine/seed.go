package engine

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/ui4t/internal/fixture"
	"github.com/leapstack-labs/ui4t/internal/seed"
)

// Seed connects to one target and seeds the fixture sets at paths, in
// order. It stops at the first failure and returns the sets seeded so far.
func (e *Engine) Seed(ctx context.Context, tc TargetConfig, paths []string) ([]*seed.Result, error) {
	sets, err := fixture.LoadAll(e.fs, paths)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With(slog.String("target", tc.Name))
	target, err := e.connect(ctx, tc, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = target.Adapter.Close() }()

	var results []*seed.Result
	for _, set := range sets {
		res, err := e.seeder.Seed(ctx, target, set)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
