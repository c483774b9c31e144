package dialect

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
)

// CreateSchemaSQL renders CREATE SCHEMA IF NOT EXISTS. It returns "" when
// neither schema nor a default schema is set.
func (d *Dialect) CreateSchemaSQL(schema string) string {
	if schema == "" && d.defaultSchema == "" {
		return ""
	}
	return "CREATE SCHEMA IF NOT EXISTS " + d.QualifySchema(schema)
}

// CreateTableSQL renders a CREATE TABLE statement with typed columns.
func (d *Dialect) CreateTableSQL(ref core.TableRef, schema *core.Schema) (string, error) {
	return d.createTable("CREATE TABLE ", ref, schema)
}

// CreateTableIfNotExistsSQL is CreateTableSQL for a table that may already
// exist.
func (d *Dialect) CreateTableIfNotExistsSQL(ref core.TableRef, schema *core.Schema) (string, error) {
	return d.createTable("CREATE TABLE IF NOT EXISTS ", ref, schema)
}

func (d *Dialect) createTable(prefix string, ref core.TableRef, schema *core.Schema) (string, error) {
	if schema.Len() == 0 {
		return "", fmt.Errorf("create table %s: no columns", ref)
	}
	lines := make([]string, 0, schema.Len())
	for _, c := range schema.Columns() {
		typ, err := d.MapType(c.Type)
		if err != nil {
			return "", fmt.Errorf("create table %s: column %s: %w", ref, c.Name, err)
		}
		lines = append(lines, "  "+d.QuoteIdentifier(c.Name)+" "+typ)
	}
	return prefix + d.QualifyRef(ref) + " (\n" + strings.Join(lines, ",\n") + "\n)", nil
}

// DropTableSQL renders DROP TABLE IF EXISTS.
func (d *Dialect) DropTableSQL(ref core.TableRef) string {
	return "DROP TABLE IF EXISTS " + d.QualifyRef(ref)
}

// DropViewSQL renders DROP VIEW IF EXISTS.
func (d *Dialect) DropViewSQL(ref core.TableRef) string {
	return "DROP VIEW IF EXISTS " + d.QualifyRef(ref)
}
