package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/dialect"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec and Query implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement and fetches every row.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*core.ResultSet, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rs, err := ScanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read query results: %w", err)
	}
	return rs, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// ScanAll reads every row into a ResultSet. Byte slices are copied into
// strings so values stay valid after the rows are closed.
func ScanAll(rows *sql.Rows) (*core.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &core.ResultSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if bs, ok := v.([]byte); ok {
				vals[i] = string(bs)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// TableSchemaCommon provides a shared implementation of TableSchema using
// information_schema.columns. Catalog type names are mapped back to
// semantic types through the dialect.
func (b *BaseSQLAdapter) TableSchemaCommon(ctx context.Context, ref core.TableRef, d *dialect.Dialect) (*core.Schema, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	ref = ref.WithDefaultSchema(d.DefaultSchema())

	// Literals are rendered by the dialect, so no placeholder style is needed.
	query := fmt.Sprintf(`SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, d.QuoteString(ref.Schema), d.QuoteString(ref.Table))

	rows, err := b.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []core.Column
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		t, ok := d.SemanticTypeOf(dataType)
		if !ok {
			return nil, fmt.Errorf("table %s column %s: unsupported type %s", ref, name, dataType)
		}
		cols = append(cols, core.Column{Name: name, Type: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", ref)
	}
	return core.NewSchema(cols...)
}

// LoadRowsBatched loads rows with multi-row INSERT statements of at most
// batchSize rows each.
func (b *BaseSQLAdapter) LoadRowsBatched(ctx context.Context, d *dialect.Dialect, ref core.TableRef, schema *core.Schema, rows [][]any, batchSize int) (int64, error) {
	if b.DB == nil {
		return 0, ErrNotConnected
	}
	return InsertBatches(ctx, d, ref, schema, rows, batchSize, b.Exec)
}

// InsertBatches renders rows as INSERT statements of at most batchSize rows
// and runs each one with exec. It returns the number of rows inserted.
func InsertBatches(ctx context.Context, d *dialect.Dialect, ref core.TableRef, schema *core.Schema, rows [][]any, batchSize int, exec func(context.Context, string) error) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var loaded int64
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		stmt, err := d.InsertSQL(ref, schema, rows[start:end])
		if err != nil {
			return loaded, err
		}
		if err := exec(ctx, stmt); err != nil {
			return loaded, err
		}
		loaded += int64(end - start)
	}
	return loaded, nil
}

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 500
