// Package adapters constructs warehouse adapters by name.
//
// Construction is an explicit switch over the supported warehouses; there is
// no global registry and no init-time side effects.
package adapters

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/adapter"
	"github.com/leapstack-labs/ui4t/pkg/adapters/bigquery"
	bqdialect "github.com/leapstack-labs/ui4t/pkg/adapters/bigquery/dialect"
	"github.com/leapstack-labs/ui4t/pkg/adapters/duckdb"
	duckdialect "github.com/leapstack-labs/ui4t/pkg/adapters/duckdb/dialect"
	"github.com/leapstack-labs/ui4t/pkg/adapters/postgres"
	pgdialect "github.com/leapstack-labs/ui4t/pkg/adapters/postgres/dialect"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/dialect"
)

// Names lists the supported warehouse names (sorted).
var Names = []string{bqdialect.Name, duckdialect.Name, pgdialect.Name}

// Known reports whether name is a supported warehouse.
func Known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// New creates an unconnected adapter for cfg.Type.
// The logger is passed to the adapter constructor (nil uses discard logger).
func New(cfg core.AdapterConfig, logger *slog.Logger) (adapter.Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	switch strings.ToLower(cfg.Type) {
	case pgdialect.Name:
		return postgres.New(logger), nil
	case bqdialect.Name:
		return bigquery.New(logger), nil
	case duckdialect.Name:
		return duckdb.New(logger), nil
	}
	return nil, &adapter.UnknownAdapterError{Type: cfg.Type, Available: Names}
}

// NewDialect builds the dialect for cfg without connecting, for compiling
// artifacts offline.
func NewDialect(cfg core.AdapterConfig) (*dialect.Dialect, error) {
	switch strings.ToLower(cfg.Type) {
	case pgdialect.Name:
		return pgdialect.New(cfg.Schema), nil
	case bqdialect.Name:
		dataset := cfg.Dataset
		if dataset == "" {
			dataset = cfg.Schema
		}
		return bqdialect.New(cfg.Project, dataset), nil
	case duckdialect.Name:
		return duckdialect.New(cfg.Schema), nil
	}
	return nil, &adapter.UnknownAdapterError{Type: cfg.Type, Available: Names}
}
