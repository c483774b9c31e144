// Package fixture loads fixture sets: named groups of typed tables with
// rows, declared in YAML with rows inline or in a CSV file next to it.
//
//	name: orders
//	tables:
//	  - name: raw_orders
//	    columns:
//	      - {name: id, type: integer}
//	      - {name: placed_at, type: timestamp}
//	    rows:
//	      - {id: 1, placed_at: "2024-01-01T00:00:00Z"}
//	  - name: raw_events
//	    columns: [...]
//	    csv: raw_events.csv
//
// Every value is coerced to its column's semantic type at load time, so a
// loaded Set is ready to be handed to an adapter.
package fixture

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Set is a named group of fixture tables seeded together.
type Set struct {
	Name   string
	Tables []*Table
}

// Table is one fixture table with coerced rows.
type Table struct {
	Name   string
	Schema *core.Schema
	// Rows hold one value per schema column, in column order.
	Rows [][]any
}

type fileSet struct {
	Name   string      `yaml:"name"`
	Tables []fileTable `yaml:"tables"`
}

type fileTable struct {
	Name    string           `yaml:"name"`
	Columns []core.Column    `yaml:"columns"`
	Rows    []map[string]any `yaml:"rows"`
	CSV     string           `yaml:"csv"`
}

// Load reads a fixture set from path. CSV paths are relative to the
// fixture file's directory.
func Load(fs afero.Fs, path string) (*Set, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture set %s: %w", path, err)
	}
	var raw fileSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("fixture set %s: %w", path, err)
	}
	set, err := build(fs, filepath.Dir(path), raw)
	if err != nil {
		return nil, fmt.Errorf("fixture set %s: %w", path, err)
	}
	return set, nil
}

// LoadAll loads every path, rejecting duplicate set names.
func LoadAll(fs afero.Fs, paths []string) ([]*Set, error) {
	sets := make([]*Set, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := Load(fs, p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("fixture set %q is declared in both %s and %s", s.Name, prev, p)
		}
		seen[s.Name] = p
		sets = append(sets, s)
	}
	return sets, nil
}

func build(fs afero.Fs, dir string, raw fileSet) (*Set, error) {
	if !core.ValidIdentifier(raw.Name) {
		return nil, fmt.Errorf("invalid fixture set name %q", raw.Name)
	}
	if len(raw.Tables) == 0 {
		return nil, fmt.Errorf("fixture set %s has no tables", raw.Name)
	}
	set := &Set{Name: raw.Name}
	seen := make(map[string]bool, len(raw.Tables))
	for _, ft := range raw.Tables {
		if !core.ValidIdentifier(ft.Name) {
			return nil, fmt.Errorf("invalid table name %q", ft.Name)
		}
		if seen[ft.Name] {
			return nil, fmt.Errorf("duplicate table %q", ft.Name)
		}
		seen[ft.Name] = true

		t, err := buildTable(fs, dir, ft)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", ft.Name, err)
		}
		set.Tables = append(set.Tables, t)
	}
	return set, nil
}

func buildTable(fs afero.Fs, dir string, ft fileTable) (*Table, error) {
	schema, err := core.NewSchema(ft.Columns...)
	if err != nil {
		return nil, err
	}
	if schema.Len() == 0 {
		return nil, fmt.Errorf("no columns declared")
	}
	t := &Table{Name: ft.Name, Schema: schema}

	switch {
	case ft.CSV != "" && len(ft.Rows) > 0:
		return nil, fmt.Errorf("declare rows inline or in a csv file, not both")
	case ft.CSV != "":
		t.Rows, err = readCSV(fs, filepath.Join(dir, ft.CSV), schema)
	default:
		t.Rows, err = coerceRecords(ft.Rows, schema)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func coerceRecords(records []map[string]any, schema *core.Schema) ([][]any, error) {
	cols := schema.Columns()
	rows := make([][]any, 0, len(records))
	for i, rec := range records {
		for name := range rec {
			if !schema.Has(name) {
				return nil, fmt.Errorf("row %d: unknown column %q", i+1, name)
			}
		}
		row := make([]any, len(cols))
		for j, c := range cols {
			v, err := core.Coerce(rec[c.Name], c.Type)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %s: %w", i+1, c.Name, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readCSV reads a CSV file with a header row naming every schema column.
// Empty cells are NULL except in string columns.
func readCSV(fs afero.Fs, path string, schema *core.Schema) ([][]any, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header %s: %w", path, err)
	}
	cols := schema.Columns()
	pos := make([]int, len(cols))
	for i := range pos {
		pos[i] = -1
	}
	for i, h := range header {
		found := false
		for j, c := range cols {
			if c.Name == h {
				pos[j], found = i, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("csv %s: unknown column %q", path, h)
		}
	}
	for j, p := range pos {
		if p < 0 {
			return nil, fmt.Errorf("csv %s: missing column %q", path, cols[j].Name)
		}
	}

	var rows [][]any
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv %s: %w", path, err)
		}
		row := make([]any, len(cols))
		for j, c := range cols {
			cell := rec[pos[j]]
			if cell == "" && c.Type != core.TypeString {
				continue
			}
			v, err := core.Coerce(cell, c.Type)
			if err != nil {
				return nil, fmt.Errorf("csv %s line %d: column %s: %w", path, line, c.Name, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Table returns the named table.
func (s *Set) Table(name string) (*Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// RowCount is the number of rows across every table.
func (s *Set) RowCount() int {
	n := 0
	for _, t := range s.Tables {
		n += len(t.Rows)
	}
	return n
}

// Records returns the table rows keyed by column name.
func (t *Table) Records() []core.Row {
	rs := core.ResultSet{Columns: t.Schema.Names(), Rows: t.Rows}
	return rs.Records()
}
