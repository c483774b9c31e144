// Package duckdb provides an in-process DuckDB warehouse adapter for ui4t.
// It is the local stand-in for columnar warehouses in development and in
// integration tests that run without cloud credentials.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/leapstack-labs/ui4t/pkg/adapter"
	duckdialect "github.com/leapstack-labs/ui4t/pkg/adapters/duckdb/dialect"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/dialect"
	"github.com/marcboeker/go-duckdb"
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	dialect *dialect.Dialect
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
		dialect:        duckdialect.New(""),
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return duckdialect.Name
}

// Dialect returns the DuckDB dialect for the connected schema.
func (a *Adapter) Dialect() *dialect.Dialect {
	return a.dialect
}

// Connect establishes a connection to DuckDB.
// An empty path (or ":memory:") opens an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", cfg.Path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	// Session settings are per connection; a single connection keeps them
	// in force for every statement.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	for _, stmt := range params.setupStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}

	a.DB = db
	a.Cfg = cfg
	a.dialect = duckdialect.New(cfg.Schema)
	return nil
}

// Query executes a statement and fetches every row. DECIMAL values are
// returned as exact decimal text.
func (a *Adapter) Query(ctx context.Context, sqlStr string) (*core.ResultSet, error) {
	rs, err := a.BaseSQLAdapter.Query(ctx, sqlStr)
	if err != nil {
		return nil, err
	}
	for _, row := range rs.Rows {
		for i, v := range row {
			if d, ok := v.(duckdb.Decimal); ok {
				row[i] = decimalText(d)
			}
		}
	}
	return rs, nil
}

func decimalText(d duckdb.Decimal) string {
	if d.Value == nil {
		return "0"
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil)
	return core.FormatDecimal(new(big.Rat).SetFrac(d.Value, denom))
}

// TableSchema introspects a table through information_schema.
func (a *Adapter) TableSchema(ctx context.Context, ref core.TableRef) (*core.Schema, error) {
	return a.TableSchemaCommon(ctx, ref, a.dialect)
}

// LoadRows loads rows with batched INSERT statements.
func (a *Adapter) LoadRows(ctx context.Context, ref core.TableRef, schema *core.Schema, rows [][]any) (int64, error) {
	return a.LoadRowsBatched(ctx, a.dialect, ref, schema, rows, adapter.DefaultBatchSize)
}

// IsTransient reports whether err is retryable. An in-process database has
// no network, so only broken connections qualify.
func (a *Adapter) IsTransient(err error) bool {
	return adapter.IsNetworkError(err)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
