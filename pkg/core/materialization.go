package core

// Materialization constants for compiled artifacts.
const (
	MaterializationTable       = "table"
	MaterializationView        = "view"
	MaterializationIncremental = "incremental"
)

// Materialization describes how the final query of an artifact is persisted.
type Materialization struct {
	Type string `json:"type,omitempty" yaml:"materialized,omitempty"`
	// UniqueKey is required for incremental materializations.
	UniqueKey []string `json:"unique_key,omitempty" yaml:"unique_key,omitempty"`
}

// Kind returns the materialization type, defaulting to table.
func (m Materialization) Kind() string {
	if m.Type == "" {
		return MaterializationTable
	}
	return m.Type
}
