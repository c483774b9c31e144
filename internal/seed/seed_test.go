package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leapstack-labs/ui4t/internal/fixture"
	"github.com/leapstack-labs/ui4t/internal/testutil"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersSet = `
name: orders
tables:
  - name: raw_orders
    columns:
      - {name: id, type: integer}
      - {name: amount, type: decimal}
      - {name: placed_at, type: timestamp}
    rows:
      - {id: 1, amount: "10.50", placed_at: "2024-01-01T00:00:00Z"}
      - {id: 2, amount: "3", placed_at: "2024-01-02T00:00:00Z"}
  - name: customers
    columns:
      - {name: id, type: integer}
      - {name: name, type: string}
    rows:
      - {id: 1, name: alice}
`

var fastRetry = RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func loadSet(t *testing.T) *fixture.Set {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "orders.yaml", []byte(ordersSet), 0o644))
	set, err := fixture.Load(fs, "orders.yaml")
	require.NoError(t, err)
	return set
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	target := testutil.NewDuckDBTarget(t, "ui4t_test")
	seeded := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(testutil.NewTestLogger(t), WithRetry(fastRetry), WithClock(func() time.Time { return seeded }))

	res, err := s.Seed(ctx, target, loadSet(t))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tables)
	assert.Equal(t, int64(3), res.Rows)

	rs, err := target.Adapter.Query(ctx, `SELECT count(*) FROM "ui4t_test"."raw_orders"`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rs.Rows[0][0])

	entries, err := ReadManifest(ctx, target)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ManifestEntry{FixtureSet: "orders", Status: StatusComplete, Tables: 2, Rows: 3, SeededAt: seeded}, entries[0])
}

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	target := testutil.NewDuckDBTarget(t, "ui4t_test")
	s := New(nil, WithRetry(fastRetry))
	set := loadSet(t)

	_, err := s.Seed(ctx, target, set)
	require.NoError(t, err)
	first, err := target.Adapter.Query(ctx, `SELECT * FROM "ui4t_test"."raw_orders" ORDER BY id`)
	require.NoError(t, err)

	_, err = s.Seed(ctx, target, set)
	require.NoError(t, err)
	second, err := target.Adapter.Query(ctx, `SELECT * FROM "ui4t_test"."raw_orders" ORDER BY id`)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := ReadManifest(ctx, target)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "reseeding replaces the manifest row")
}

func TestSeed_RetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	target := testutil.NewDuckDBTarget(t, "ui4t_test")
	faulty := &testutil.FaultyAdapter{Adapter: target.Adapter, Prefix: "CREATE TABLE ", Times: 2}
	target.Adapter = faulty

	_, err := New(nil, WithRetry(fastRetry)).Seed(ctx, target, loadSet(t))
	require.NoError(t, err)
	assert.Equal(t, 2, faulty.Failures())
}

func TestSeed_PartialFailure(t *testing.T) {
	ctx := context.Background()
	target := testutil.NewDuckDBTarget(t, "ui4t_test")
	inner := target.Adapter
	permanent := errors.New("permission denied for schema ui4t_test")
	// The first table loads; creating the second fails.
	target.Adapter = &testutil.FaultyAdapter{Adapter: inner, Prefix: `CREATE TABLE "ui4t_test"."customers"`, Times: -1, Err: permanent}

	_, err := New(nil, WithRetry(fastRetry)).Seed(ctx, target, loadSet(t))
	var failure *core.SeedFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "duckdb", failure.Target)
	assert.Equal(t, "orders", failure.FixtureSet)
	assert.Equal(t, "customers", failure.Table)
	assert.True(t, failure.Partial)
	assert.False(t, failure.Transient)
	assert.ErrorIs(t, err, permanent)

	entries, err := ReadManifest(ctx, target)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusPartial, entries[0].Status)
	assert.Equal(t, int64(1), entries[0].Tables)
}

func TestSeed_TransientExhausted(t *testing.T) {
	ctx := context.Background()
	target := testutil.NewDuckDBTarget(t, "ui4t_test")
	faulty := &testutil.FaultyAdapter{Adapter: target.Adapter, Prefix: "CREATE SCHEMA", Times: -1}
	target.Adapter = faulty

	_, err := New(nil, WithRetry(fastRetry)).Seed(ctx, target, loadSet(t))
	var failure *core.SeedFailure
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.Transient)
	assert.False(t, failure.Partial)
	assert.Equal(t, 3, faulty.Failures())

	entries, err := ReadManifest(ctx, target)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRetryPolicy_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("authentication failed")
	err := fastRetry.Do(context.Background(), func(error) bool { return false }, func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)

	calls = 0
	err = RetryPolicy{}.Do(context.Background(), func(error) bool { return true }, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
