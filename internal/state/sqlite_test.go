package state

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/ui4t/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenLedger(context.Background(), ":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// stepClock returns a clock advancing one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Migrating twice is a no-op.
	require.NoError(t, store.Migrate(ctx))

	for _, table := range []string{"runs", "case_results"} {
		rows, err := store.db.QueryContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1")
		require.NoError(t, err, "table %s", table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_FileLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store, err := OpenLedger(ctx, path, nil)
	require.NoError(t, err)
	run, err := store.CreateRun(ctx, "duckdb")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenLedger(ctx, path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", got.Target)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store.now = stepClock(start)

	run, err := store.CreateRun(ctx, "postgres")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.NotEmpty(t, run.ID)

	require.NoError(t, store.CompleteRun(ctx, run.ID, RunStatusFailed, "1 case failed"))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "1 case failed", got.Error)
	assert.Equal(t, start.Add(time.Second), got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, start.Add(2*time.Second), *got.CompletedAt)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorContains(t, err, "run not found")
	assert.ErrorContains(t, store.CompleteRun(ctx, "missing", RunStatusSuccess, ""), "run not found")
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	store.now = stepClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	var ids []string
	for _, target := range []string{"postgres", "bigquery", "duckdb"} {
		run, err := store.CreateRun(ctx, target)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[1], runs[1].ID)
	assert.Nil(t, runs[0].CompletedAt)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_CaseResults(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	store.now = stepClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	run, err := store.CreateRun(ctx, "duckdb")
	require.NoError(t, err)

	passed := &CaseResult{RunID: run.ID, Case: "latest_events", ArtifactKey: "duckdb/00000000000000ff", Dialect: "duckdb", SQL: "SELECT 1;\n", Status: CaseStatusPassed}
	failed := &CaseResult{RunID: run.ID, Case: "totals", Status: CaseStatusMismatch, Mismatches: 2, Error: "result differs"}
	require.NoError(t, store.RecordCase(ctx, passed))
	require.NoError(t, store.RecordCase(ctx, failed))
	assert.NotEmpty(t, passed.ID)

	other, err := store.CreateRun(ctx, "postgres")
	require.NoError(t, err)
	require.NoError(t, store.RecordCase(ctx, &CaseResult{RunID: other.ID, Case: "x", Status: CaseStatusError}))

	results, err := store.CaseResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, passed, results[0])
	assert.Equal(t, failed, results[1])

	err = store.RecordCase(ctx, &CaseResult{RunID: "no-such-run", Case: "x", Status: CaseStatusError})
	assert.Error(t, err, "foreign key enforced")
}

func TestSQLiteStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	var wg sync.WaitGroup
	for _, target := range []string{"postgres", "bigquery", "duckdb"} {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			run, err := store.CreateRun(ctx, target)
			if !assert.NoError(t, err) {
				return
			}
			for i := 0; i < 5; i++ {
				assert.NoError(t, store.RecordCase(ctx, &CaseResult{RunID: run.ID, Case: "c", Status: CaseStatusPassed}))
			}
			assert.NoError(t, store.CompleteRun(ctx, run.ID, RunStatusSuccess, ""))
		}(target)
	}
	wg.Wait()

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestSQLiteStore_NotOpen(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(nil)
	_, err := store.CreateRun(ctx, "x")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, store.Migrate(ctx), ErrNotOpen)
	assert.NoError(t, store.Close())
}
