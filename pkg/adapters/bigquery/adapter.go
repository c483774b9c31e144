// Package bigquery provides a BigQuery warehouse adapter for ui4t.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/ui4t/pkg/adapter"
	bqdialect "github.com/leapstack-labs/ui4t/pkg/adapters/bigquery/dialect"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/dialect"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// runner is the subset of the BigQuery client the adapter needs.
type runner interface {
	// exec runs a job and waits for it to finish.
	exec(ctx context.Context, sql string) error
	// query runs a query job, waits for it and fetches every row.
	query(ctx context.Context, sql string) (*core.ResultSet, error)
	// schema returns the schema of an existing table.
	schema(ctx context.Context, dataset, table string) (bigquery.Schema, error)
	close() error
}

// Adapter implements the adapter.Adapter interface for BigQuery.
type Adapter struct {
	client  runner
	cfg     core.AdapterConfig
	logger  *slog.Logger
	dialect *dialect.Dialect
}

// New creates a new BigQuery adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		logger:  logger,
		dialect: bqdialect.New("", ""),
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return bqdialect.Name
}

// Dialect returns the BigQuery dialect addressing the configured project
// and dataset.
func (a *Adapter) Dialect() *dialect.Dialect {
	return a.dialect
}

// Connect creates a BigQuery client authenticated with the service-account
// key file and checks that the project is reachable.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	if cfg.Project == "" {
		return fmt.Errorf("bigquery project not specified")
	}
	dataset := cfg.Dataset
	if dataset == "" {
		dataset = cfg.Schema
	}

	a.logger.Debug("connecting to bigquery", slog.String("project", cfg.Project), slog.String("dataset", dataset))

	var opts []option.ClientOption
	if cfg.KeyFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.KeyFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return fmt.Errorf("failed to create bigquery client: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	r := &clientRunner{client: client}
	if err := r.exec(ctx, "SELECT 1"); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to reach bigquery: %w", err)
	}

	a.client = r
	a.cfg = cfg
	a.dialect = bqdialect.New(cfg.Project, dataset)
	return nil
}

// Close releases the client.
func (a *Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	a.logger.Debug("closing bigquery client")
	err := a.client.close()
	a.client = nil
	return err
}

// IsConnected returns true if a client is available.
func (a *Adapter) IsConnected() bool {
	return a.client != nil
}

// Exec runs a statement as a query job and waits for it to finish.
func (a *Adapter) Exec(ctx context.Context, sql string) error {
	if a.client == nil {
		return adapter.ErrNotConnected
	}
	if err := a.client.exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query runs a query job and fetches every row.
func (a *Adapter) Query(ctx context.Context, sql string) (*core.ResultSet, error) {
	if a.client == nil {
		return nil, adapter.ErrNotConnected
	}
	rs, err := a.client.query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rs, nil
}

// LoadRows loads rows with batched INSERT DML. Streaming inserts are avoided
// because streamed rows cannot be dropped or modified right away.
func (a *Adapter) LoadRows(ctx context.Context, ref core.TableRef, schema *core.Schema, rows [][]any) (int64, error) {
	if a.client == nil {
		return 0, adapter.ErrNotConnected
	}
	return adapter.InsertBatches(ctx, a.dialect, ref, schema, rows, adapter.DefaultBatchSize, a.Exec)
}

// TableSchema reads a table's schema from its metadata.
func (a *Adapter) TableSchema(ctx context.Context, ref core.TableRef) (*core.Schema, error) {
	if a.client == nil {
		return nil, adapter.ErrNotConnected
	}
	ref = ref.WithDefaultSchema(a.dialect.DefaultSchema())
	fields, err := a.client.schema(ctx, ref.Schema, ref.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to read table metadata for %s: %w", ref, err)
	}
	cols := make([]core.Column, 0, len(fields))
	for _, f := range fields {
		t, ok := a.dialect.SemanticTypeOf(string(f.Type))
		if !ok {
			return nil, fmt.Errorf("table %s column %s: unsupported type %s", ref, f.Name, f.Type)
		}
		cols = append(cols, core.Column{Name: f.Name, Type: t})
	}
	return core.NewSchema(cols...)
}

// IsTransient reports whether err is a retryable failure: rate limits,
// backend errors and dropped connections. Authentication and permission
// failures are never transient.
func (a *Adapter) IsTransient(err error) bool {
	return isTransient(err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		for _, item := range apiErr.Errors {
			if item.Reason == "backendError" || item.Reason == "rateLimitExceeded" || item.Reason == "internalError" {
				return true
			}
		}
		return false
	}
	var bqErr *bigquery.Error
	if errors.As(err, &bqErr) {
		switch bqErr.Reason {
		case "backendError", "rateLimitExceeded", "internalError", "jobBackendError":
			return true
		}
		return false
	}
	return adapter.IsNetworkError(err)
}

// clientRunner runs jobs on a real BigQuery client.
type clientRunner struct {
	client *bigquery.Client
}

func (r *clientRunner) wait(ctx context.Context, sql string) (*bigquery.Job, error) {
	job, err := r.client.Query(sql).Run(ctx)
	if err != nil {
		return nil, err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if err := status.Err(); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *clientRunner) exec(ctx context.Context, sql string) error {
	_, err := r.wait(ctx, sql)
	return err
}

func (r *clientRunner) query(ctx context.Context, sql string) (*core.ResultSet, error) {
	job, err := r.wait(ctx, sql)
	if err != nil {
		return nil, err
	}
	it, err := job.Read(ctx)
	if err != nil {
		return nil, err
	}

	rs := &core.ResultSet{}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		if rs.Columns == nil {
			rs.Columns = fieldNames(it.Schema)
		}
		rs.Rows = append(rs.Rows, convertRow(row))
	}
	if rs.Columns == nil {
		rs.Columns = fieldNames(it.Schema)
	}
	return rs, nil
}

func (r *clientRunner) schema(ctx context.Context, dataset, table string) (bigquery.Schema, error) {
	md, err := r.client.Dataset(dataset).Table(table).Metadata(ctx)
	if err != nil {
		return nil, err
	}
	return md.Schema, nil
}

func (r *clientRunner) close() error {
	return r.client.Close()
}

func fieldNames(schema bigquery.Schema) []string {
	names := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.Name
	}
	return names
}

// convertRow maps client values onto the representations the other
// adapters return. NUMERIC values arrive as *big.Rat and become decimal text.
func convertRow(row []bigquery.Value) []any {
	out := make([]any, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case *big.Rat:
			out[i] = core.FormatDecimal(x)
		default:
			out[i] = x
		}
	}
	return out
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
