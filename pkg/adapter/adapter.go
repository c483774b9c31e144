// Package adapter provides the warehouse adapter contract for ui4t.
//
// An Adapter is the transport to one warehouse: it executes SQL, fetches
// results, bulk loads fixture rows and introspects table schemas. Concrete
// adapters live in pkg/adapters/ subdirectories and are constructed through
// adapters.New.
package adapter

import (
	"context"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/dialect"
)

// Adapter defines the interface that all warehouse adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the warehouse using the provided config.
	Connect(ctx context.Context, cfg core.AdapterConfig) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement and fetches every row.
	Query(ctx context.Context, sql string) (*core.ResultSet, error)

	// LoadRows bulk loads rows into an existing table. Each row holds one
	// value per schema column, coerced to the column's semantic type.
	LoadRows(ctx context.Context, ref core.TableRef, schema *core.Schema, rows [][]any) (int64, error)

	// TableSchema introspects a table's columns as semantic types.
	TableSchema(ctx context.Context, ref core.TableRef) (*core.Schema, error)

	// Dialect returns the SQL dialect for this adapter's target. It reflects
	// the connected config (default schema, project) after Connect.
	Dialect() *dialect.Dialect

	// IsTransient reports whether err is a connection-level failure worth
	// retrying. Authentication and permission errors are never transient.
	IsTransient(err error) bool
}

// Target is one configured warehouse a run executes against.
type Target struct {
	// Name is the warehouse name used on the command line (postgres, bigquery, duckdb).
	Name string
	// Schema is where fixtures are seeded and artifacts are materialized
	// (the dataset on BigQuery).
	Schema  string
	Config  core.AdapterConfig
	Adapter Adapter
}

// Dialect returns the target adapter's dialect.
func (t *Target) Dialect() *dialect.Dialect {
	return t.Adapter.Dialect()
}

// Ref addresses table inside the target schema.
func (t *Target) Ref(table string) core.TableRef {
	return core.TableRef{Schema: t.Schema, Table: table}
}
