package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"golang.org/x/text/unicode/norm"
)

// Null is the normalized form of SQL NULL.
const Null = "NULL"

// timestampLayout renders timestamps in UTC at microsecond precision, the
// finest precision every warehouse keeps.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Normalize renders v as comparable text for semantic type t:
//
//	integer, decimal  numeric value rounded to core.DecimalScale digits
//	timestamp         UTC, microseconds
//	string            NFC normalized
//	json              compact with sorted object keys
//	boolean           true/false from bool, text or 0/1
//
// An empty t normalizes by the value's Go type.
func Normalize(v any, t core.SemanticType) (string, error) {
	if v == nil {
		return Null, nil
	}
	switch t {
	case core.TypeInteger, core.TypeDecimal:
		r, err := core.ParseDecimal(v)
		if err != nil {
			return "", err
		}
		return core.FormatDecimal(r), nil
	case core.TypeTimestamp:
		cv, err := core.Coerce(v, core.TypeTimestamp)
		if err != nil {
			return "", err
		}
		return cv.(time.Time).Truncate(time.Microsecond).Format(timestampLayout), nil
	case core.TypeBoolean:
		cv, err := core.Coerce(v, core.TypeBoolean)
		if err != nil {
			return "", err
		}
		return fmt.Sprint(cv), nil
	case core.TypeJSON:
		return canonicalJSON(v)
	case core.TypeString:
		return norm.NFC.String(text(v)), nil
	}
	return guess(v), nil
}

func guess(v any) string {
	switch x := v.(type) {
	case string:
		return norm.NFC.String(x)
	case []byte:
		return norm.NFC.String(string(x))
	case time.Time:
		return x.UTC().Truncate(time.Microsecond).Format(timestampLayout)
	case bool:
		return fmt.Sprint(x)
	case json.RawMessage:
		if s, err := canonicalJSON(x); err == nil {
			return s
		}
	}
	if r, err := core.ParseDecimal(v); err == nil {
		return core.FormatDecimal(r)
	}
	return norm.NFC.String(fmt.Sprint(v))
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func canonicalJSON(v any) (string, error) {
	cv, err := core.Coerce(v, core.TypeJSON)
	if err != nil {
		return "", err
	}
	dec := json.NewDecoder(bytes.NewReader(cv.(json.RawMessage)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", err
	}
	// encoding/json sorts map keys.
	out, err := json.Marshal(canonicalNumbers(doc))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// canonicalNumbers rewrites numbers so 1, 1.0 and 1e0 compare equal.
func canonicalNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = canonicalNumbers(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = canonicalNumbers(val)
		}
		return x
	case json.Number:
		if r, err := core.ParseDecimal(string(x)); err == nil {
			return json.Number(core.FormatDecimal(r))
		}
	}
	return v
}

// Rows is a normalized multiset of rows. A nil cell is SQL NULL, distinct
// from every string value including "NULL".
type Rows struct {
	Columns []string
	counts  map[string]int
	rows    map[string]map[string]*string
}

// Len returns the number of rows, duplicates included.
func (r *Rows) Len() int {
	n := 0
	for _, c := range r.counts {
		n += c
	}
	return n
}

func newRows(columns []string) *Rows {
	return &Rows{Columns: columns, counts: map[string]int{}, rows: map[string]map[string]*string{}}
}

func (r *Rows) add(row map[string]*string) {
	key := rowKey(row)
	r.counts[key]++
	r.rows[key] = row
}

// rowKey encodes a row as a JSON array of alternating column names and
// values, columns sorted. Quoting keeps delimiters inside values from
// colliding and NULL encodes as null.
func rowKey(row map[string]*string) string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	cells := make([]any, 0, 2*len(cols))
	for _, c := range cols {
		cells = append(cells, c, row[c])
	}
	b, err := json.Marshal(cells)
	if err != nil {
		panic(fmt.Sprintf("verify: encode row key: %v", err))
	}
	return string(b)
}

// display renders a row for mismatch reports.
func display(row map[string]*string) map[string]string {
	out := make(map[string]string, len(row))
	for c, v := range row {
		if v == nil {
			out[c] = Null
			continue
		}
		out[c] = *v
	}
	return out
}

// FromResultSet normalizes fetched rows. Column types come from schema;
// columns missing from schema are normalized by value.
func FromResultSet(rs *core.ResultSet, schema *core.Schema) (*Rows, error) {
	out := newRows(rs.Columns)
	for i, vals := range rs.Rows {
		row := make(map[string]*string, len(rs.Columns))
		for j, col := range rs.Columns {
			var v any
			if j < len(vals) {
				v = vals[j]
			}
			n, err := normalizeColumn(v, col, schema)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, col, err)
			}
			row[col] = n
		}
		out.add(row)
	}
	return out, nil
}

// FromRecords normalizes expected rows over the schema's columns. Columns a
// record omits are NULL; columns outside the schema are an error.
func FromRecords(recs []core.Row, schema *core.Schema) (*Rows, error) {
	cols := schema.Names()
	out := newRows(cols)
	for i, rec := range recs {
		for k := range rec {
			if !schema.Has(k) {
				return nil, fmt.Errorf("expected row %d: column %q is not in the output %s", i+1, k, schema)
			}
		}
		row := make(map[string]*string, len(cols))
		for _, col := range cols {
			n, err := normalizeColumn(rec[col], col, schema)
			if err != nil {
				return nil, fmt.Errorf("expected row %d column %s: %w", i+1, col, err)
			}
			row[col] = n
		}
		out.add(row)
	}
	return out, nil
}

func normalizeColumn(v any, col string, schema *core.Schema) (*string, error) {
	if v == nil {
		return nil, nil
	}
	c, _ := schema.Lookup(col)
	n, err := Normalize(v, c.Type)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Difference is the outcome of comparing two row multisets.
type Difference struct {
	MissingColumns []string
	ExtraColumns   []string
	Rows           []core.RowMismatch
}

// Empty reports whether both sides matched.
func (d Difference) Empty() bool {
	return len(d.MissingColumns) == 0 && len(d.ExtraColumns) == 0 && len(d.Rows) == 0
}

// Compare diffs actual against expected as multisets, ignoring row order.
// When the column sets differ, rows are compared over the shared columns.
func Compare(expected, actual *Rows) Difference {
	var d Difference
	shared := make(map[string]bool)
	inActual := make(map[string]bool, len(actual.Columns))
	for _, c := range actual.Columns {
		inActual[c] = true
	}
	for _, c := range expected.Columns {
		if inActual[c] {
			shared[c] = true
		} else {
			d.MissingColumns = append(d.MissingColumns, c)
		}
	}
	for _, c := range actual.Columns {
		if !shared[c] {
			d.ExtraColumns = append(d.ExtraColumns, c)
		}
	}

	want := project(expected, shared)
	got := project(actual, shared)
	for key, n := range want.counts {
		if diff := n - got.counts[key]; diff > 0 {
			d.Rows = append(d.Rows, core.RowMismatch{Kind: core.MismatchMissing, Row: display(want.rows[key]), Count: diff})
		}
	}
	for key, n := range got.counts {
		if diff := n - want.counts[key]; diff > 0 {
			d.Rows = append(d.Rows, core.RowMismatch{Kind: core.MismatchUnexpected, Row: display(got.rows[key]), Count: diff})
		}
	}
	sort.Slice(d.Rows, func(i, j int) bool {
		if d.Rows[i].Kind != d.Rows[j].Kind {
			return d.Rows[i].Kind < d.Rows[j].Kind
		}
		return core.FormatRow(d.Rows[i].Row) < core.FormatRow(d.Rows[j].Row)
	})
	return d
}

// project keeps only the given columns. It returns r itself when nothing
// is dropped.
func project(r *Rows, keep map[string]bool) *Rows {
	if len(keep) == len(r.Columns) {
		return r
	}
	cols := make([]string, 0, len(keep))
	for _, c := range r.Columns {
		if keep[c] {
			cols = append(cols, c)
		}
	}
	out := newRows(cols)
	for key, row := range r.rows {
		p := make(map[string]*string, len(cols))
		for _, c := range cols {
			p[c] = row[c]
		}
		pk := rowKey(p)
		out.counts[pk] += r.counts[key]
		out.rows[pk] = p
	}
	return out
}
