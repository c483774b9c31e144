package testutil

import (
	"context"
	"database/sql/driver"
	"strings"
	"sync"
	"testing"

	"github.com/leapstack-labs/ui4t/pkg/adapter"
	"github.com/leapstack-labs/ui4t/pkg/adapters/duckdb"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/stretchr/testify/require"
)

// NewDuckDBTarget connects an in-memory DuckDB warehouse seeded into schema.
// The connection is closed when the test ends.
func NewDuckDBTarget(t testing.TB, schema string) *adapter.Target {
	t.Helper()
	cfg := core.AdapterConfig{Type: "duckdb", Path: ":memory:", Schema: schema}
	adp := duckdb.New(NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), cfg))
	t.Cleanup(func() { _ = adp.Close() })
	return &adapter.Target{Name: "duckdb", Schema: schema, Config: cfg, Adapter: adp}
}

// FaultyAdapter wraps an adapter and fails statements that start with a
// prefix. Failures are transient (a broken connection) unless Err is set.
type FaultyAdapter struct {
	adapter.Adapter

	// Prefix selects the failing statements.
	Prefix string
	// Times is how many matching statements fail; negative fails forever.
	Times int
	// Err replaces the default transient error.
	Err error

	mu     sync.Mutex
	failed int
}

// Exec fails matching statements, otherwise delegates.
func (f *FaultyAdapter) Exec(ctx context.Context, sql string) error {
	if err := f.fault(sql); err != nil {
		return err
	}
	return f.Adapter.Exec(ctx, sql)
}

// Query fails matching statements, otherwise delegates.
func (f *FaultyAdapter) Query(ctx context.Context, sql string) (*core.ResultSet, error) {
	if err := f.fault(sql); err != nil {
		return nil, err
	}
	return f.Adapter.Query(ctx, sql)
}

// Failures returns how many statements were failed.
func (f *FaultyAdapter) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

func (f *FaultyAdapter) fault(sql string) error {
	if !strings.HasPrefix(sql, f.Prefix) {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Times >= 0 && f.failed >= f.Times {
		return nil
	}
	f.failed++
	if f.Err != nil {
		return f.Err
	}
	return driver.ErrBadConn
}
