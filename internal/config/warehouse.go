package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
)

// MissingEnvError lists every required environment variable a warehouse
// needs that is unset or empty.
type MissingEnvError struct {
	Warehouse string
	Names     []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("warehouse %s: missing required environment variables: %s",
		e.Warehouse, strings.Join(e.Names, ", "))
}

// Warehouses lists the supported warehouse names.
var Warehouses = []string{"postgres", "bigquery", "duckdb"}

// KnownWarehouse reports whether name is a supported warehouse.
func KnownWarehouse(name string) bool {
	for _, w := range Warehouses {
		if w == name {
			return true
		}
	}
	return false
}

// DuckDBMemory is the DuckDB path used when DUCKDB_PATH is unset. Data in it
// lives only as long as the process.
const DuckDBMemory = ":memory:"

// LookupFunc reads one environment variable.
type LookupFunc func(name string) (string, bool)

// Warehouse resolves the connection settings of a warehouse from the
// environment. A nil lookup reads the process environment. Unknown names
// return an error listing the supported warehouses.
func Warehouse(name string, lookup LookupFunc) (core.AdapterConfig, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	r := envReader{lookup: lookup}
	cfg := core.AdapterConfig{Type: name}

	switch name {
	case "postgres":
		cfg.Host = r.required("POSTGRES_HOST")
		port := r.required("POSTGRES_PORT")
		cfg.Username = r.required("POSTGRES_USER")
		cfg.Password = r.required("POSTGRES_PASSWORD")
		cfg.Database = r.required("POSTGRES_DB")
		cfg.Schema = r.required("POSTGRES_SCHEMA")
		cfg.SSLMode = r.optional("POSTGRES_SSLMODE", "")
		if err := r.err(name); err != nil {
			return cfg, err
		}
		p, err := strconv.Atoi(strings.TrimSpace(port))
		if err != nil || p <= 0 || p > 65535 {
			return cfg, fmt.Errorf("warehouse postgres: POSTGRES_PORT %q is not a valid port", port)
		}
		cfg.Port = p

	case "bigquery":
		cfg.Project = r.required("BIGQUERY_PROJECT")
		cfg.Dataset = r.required("BIGQUERY_DATASET")
		cfg.KeyFile = r.required("BIGQUERY_KEYFILE")
		cfg.Location = r.optional("BIGQUERY_LOCATION", "")
		cfg.Schema = cfg.Dataset
		if err := r.err(name); err != nil {
			return cfg, err
		}

	case "duckdb":
		cfg.Path = r.optional("DUCKDB_PATH", DuckDBMemory)
		cfg.Schema = r.optional("DUCKDB_SCHEMA", "main")

	default:
		return cfg, fmt.Errorf("unknown warehouse %q", name)
	}
	return cfg, nil
}

type envReader struct {
	lookup  LookupFunc
	missing []string
}

// required returns the variable unchanged; blank values count as missing.
func (r *envReader) required(name string) string {
	v, ok := r.lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		r.missing = append(r.missing, name)
	}
	return v
}

func (r *envReader) optional(name, def string) string {
	if v, ok := r.lookup(name); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func (r *envReader) err(warehouse string) error {
	if len(r.missing) == 0 {
		return nil
	}
	return &MissingEnvError{Warehouse: warehouse, Names: r.missing}
}
