package core

// DialectConfig holds the static configuration for a warehouse dialect.
// It is pure data; rendering lives in pkg/dialect.
//
// The runtime behavior (casts, JSON extraction, literals) lives in
// pkg/dialect.Dialect, which embeds this config.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "postgres", "bigquery")
	Name string

	// Identifiers defines quoting rules
	Identifiers IdentifierConfig

	// Strings defines how string literals are escaped
	Strings StringEscapeStyle

	// Addressing defines how schema-qualified names are rendered
	Addressing AddressingStyle

	// Catalog is the top-level namespace (BigQuery project). Optional.
	Catalog string

	// DefaultSchema is the schema used for unqualified table references
	DefaultSchema string

	// TypeNames maps every semantic type to the dialect's type name
	TypeNames map[SemanticType]string

	// Operations lists the operation kinds the dialect can express
	Operations []OperationKind

	// Features lists optional SQL capabilities
	Features []Feature
}

// IdentifierConfig defines how identifiers are quoted.
type IdentifierConfig struct {
	Quote    string // Quote character: ", `
	QuoteEnd string // End quote character (usually same as Quote)
	Escape   string // Escape sequence for QuoteEnd inside a name: "", \`
}

// StringEscapeStyle defines how quotes inside string literals are escaped.
type StringEscapeStyle int

const (
	// EscapeDoubledQuote doubles single quotes: 'it''s' (PostgreSQL, DuckDB).
	EscapeDoubledQuote StringEscapeStyle = iota
	// EscapeBackslash escapes quotes and backslashes with a backslash: 'it\'s' (BigQuery).
	EscapeBackslash
)

// AddressingStyle defines how tables are qualified.
type AddressingStyle int

const (
	// AddressSchemaTable renders schema.table.
	AddressSchemaTable AddressingStyle = iota
	// AddressCatalogDatasetTable renders project.dataset.table when a catalog is set.
	AddressCatalogDatasetTable
)

// Feature is an optional SQL capability of a dialect.
type Feature string

// Dialect features consulted by the code generator.
const (
	// FeatureWindowFunctions enables ROW_NUMBER() OVER (...).
	FeatureWindowFunctions Feature = "window_functions"
	// FeatureQualify enables the QUALIFY clause.
	FeatureQualify Feature = "qualify"
	// FeatureCTE enables WITH ... AS (...) chains in one statement.
	FeatureCTE Feature = "cte"
	// FeatureCreateOrReplace enables CREATE OR REPLACE TABLE.
	FeatureCreateOrReplace Feature = "create_or_replace"
	// FeatureMerge enables native MERGE upserts.
	FeatureMerge Feature = "merge"
)
