package core

import "fmt"

// AdapterConfig holds configuration for connecting to a warehouse.
type AdapterConfig struct {
	Type string

	// File-based databases (DuckDB)
	Path string

	// Network databases (PostgreSQL)
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// BigQuery
	Project  string
	Dataset  string
	KeyFile  string
	Location string

	// Schema is the default schema (dataset on BigQuery) fixtures are
	// seeded into and artifacts are materialized in.
	Schema string

	// Additional driver-specific options
	Options map[string]string

	// Params holds adapter-specific structured configuration (e.g., DuckDB
	// extensions and settings), decoded by the adapter.
	Params map[string]any
}

// String returns a description of the config that never includes secrets.
func (c AdapterConfig) String() string {
	switch c.Type {
	case "postgres":
		return fmt.Sprintf("postgres://%s@%s:%d/%s (schema %s)", c.Username, c.Host, c.Port, c.Database, c.Schema)
	case "bigquery":
		return fmt.Sprintf("bigquery://%s/%s", c.Project, c.Dataset)
	case "duckdb":
		path := c.Path
		if path == "" {
			path = ":memory:"
		}
		return fmt.Sprintf("duckdb://%s (schema %s)", path, c.Schema)
	}
	return c.Type
}
