package core

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is a portable column or table name.
// Portable names are accepted unchanged by every supported warehouse.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Column is a named, typed column of a Schema.
type Column struct {
	Name string       `json:"name" yaml:"name"`
	Type SemanticType `json:"type" yaml:"type"`
}

// Schema is an ordered set of uniquely named columns. A Schema is immutable:
// every method that changes it returns a new value.
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema builds a schema, rejecting duplicate names, non-portable names
// and unknown types.
func NewSchema(cols ...Column) (*Schema, error) {
	s := &Schema{
		columns: make([]Column, 0, len(cols)),
		index:   make(map[string]int, len(cols)),
	}
	for _, c := range cols {
		if !ValidIdentifier(c.Name) {
			return nil, fmt.Errorf("invalid column name %q", c.Name)
		}
		if !c.Type.Valid() {
			return nil, fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
		}
		if _, dup := s.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		s.index[c.Name] = len(s.columns)
		s.columns = append(s.columns, c)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. Intended for tests and
// static declarations.
func MustSchema(cols ...Column) *Schema {
	s, err := NewSchema(cols...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.columns)
}

// Columns returns a copy of the columns in declaration order.
func (s *Schema) Columns() []Column {
	if s == nil {
		return nil
	}
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the column names in declaration order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Name
	}
	return out
}

// Lookup returns the column with the given name.
func (s *Schema) Lookup(name string) (Column, bool) {
	if s == nil {
		return Column{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Has reports whether the schema contains a column with the given name.
func (s *Schema) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Equal reports whether both schemas have the same columns in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i, c := range s.columns {
		if other.columns[i] != c {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	parts := make([]string, 0, s.Len())
	for _, c := range s.Columns() {
		parts = append(parts, c.Name+" "+string(c.Type))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// TableRef addresses a table inside a warehouse. Schema is the schema name on
// row-store warehouses and the dataset name on BigQuery.
type TableRef struct {
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Table  string `json:"table" yaml:"table"`
}

// WithDefaultSchema returns r with Schema set to schema when it is empty.
func (r TableRef) WithDefaultSchema(schema string) TableRef {
	if r.Schema == "" {
		r.Schema = schema
	}
	return r
}

func (r TableRef) String() string {
	if r.Schema == "" {
		return r.Table
	}
	return r.Schema + "." + r.Table
}
