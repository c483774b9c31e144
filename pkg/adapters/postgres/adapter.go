// Package postgres provides a PostgreSQL warehouse adapter for ui4t.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/ui4t/pkg/adapter"
	pgdialect "github.com/leapstack-labs/ui4t/pkg/adapters/postgres/dialect"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/dialect"
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
	dialect *dialect.Dialect
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
		dialect:        pgdialect.New(""),
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return pgdialect.Name
}

// Dialect returns the PostgreSQL dialect for the connected schema.
func (a *Adapter) Dialect() *dialect.Dialect {
	return a.dialect
}

// Connect establishes a connection to PostgreSQL. The session time zone is
// pinned to UTC so timestamp text renders identically on every warehouse.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.dialect = pgdialect.New(cfg.Schema)
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg core.AdapterConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.SSLMode != "" {
		sslmode = cfg.SSLMode
	}
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s timezone=UTC",
		host, port, dsnValue(cfg.Database), sslmode)

	if cfg.Username != "" {
		dsn += " user=" + dsnValue(cfg.Username)
	}
	if cfg.Password != "" {
		dsn += " password=" + dsnValue(cfg.Password)
	}

	return dsn
}

// dsnValue quotes a keyword/value DSN value when it contains spaces, quotes
// or backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// TableSchema introspects a table through information_schema.
func (a *Adapter) TableSchema(ctx context.Context, ref core.TableRef) (*core.Schema, error) {
	return a.TableSchemaCommon(ctx, ref, a.dialect)
}

// LoadRows bulk loads rows with the COPY protocol.
func (a *Adapter) LoadRows(ctx context.Context, ref core.TableRef, schema *core.Schema, rows [][]any) (int64, error) {
	if a.DB == nil {
		return 0, adapter.ErrNotConnected
	}
	ref = ref.WithDefaultSchema(a.dialect.DefaultSchema())

	cols := schema.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(cols) {
			return 0, fmt.Errorf("copy into %s: row %d has %d values, want %d", ref, i, len(row), len(cols))
		}
		out := make([]any, len(cols))
		for j, c := range cols {
			v, err := copyValue(row[j], c.Type)
			if err != nil {
				return 0, fmt.Errorf("copy into %s: row %d column %s: %w", ref, i, c.Name, err)
			}
			out[j] = v
		}
		values[i] = out
	}

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var copied int64
	err = conn.Raw(func(driverConn any) error {
		pgxConn := driverConn.(*stdlib.Conn).Conn()
		n, err := pgxConn.CopyFrom(ctx, pgx.Identifier{ref.Schema, ref.Table}, names, pgx.CopyFromRows(values))
		copied = n
		return err
	})
	if err != nil {
		return copied, fmt.Errorf("failed to copy rows into %s: %w", ref, err)
	}
	a.Logger.Debug("copied rows", slog.String("table", ref.String()), slog.Int64("rows", copied))
	return copied, nil
}

// copyValue converts a coerced fixture value into a value the COPY encoder
// accepts for the column type.
func copyValue(v any, t core.SemanticType) (any, error) {
	cv, err := core.Coerce(v, t)
	if err != nil || cv == nil {
		return cv, err
	}
	switch t {
	case core.TypeDecimal:
		var n pgtype.Numeric
		if err := n.Scan(cv.(string)); err != nil {
			return nil, err
		}
		return n, nil
	case core.TypeJSON:
		return string(cv.(json.RawMessage)), nil
	}
	return cv, nil
}

// IsTransient reports whether err is a retryable connection failure.
// Authentication and permission failures are never transient.
func (a *Adapter) IsTransient(err error) bool {
	return isTransient(err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "28"), pgErr.Code == "42501":
			// invalid authorization, insufficient privilege
			return false
		case strings.HasPrefix(pgErr.Code, "08"):
			// connection exception
			return true
		case pgErr.Code == "53300", pgErr.Code == "57P01", pgErr.Code == "57P03", pgErr.Code == "40001":
			// too many connections, admin shutdown, cannot connect now, serialization failure
			return true
		}
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	return adapter.IsNetworkError(err)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
