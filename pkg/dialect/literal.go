package dialect

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/ui4t/pkg/core"
)

// TimestampLiteralLayout is the timestamp text accepted by every supported
// warehouse. Timestamps are always rendered in UTC with microsecond precision.
const TimestampLiteralLayout = "2006-01-02 15:04:05.999999-07:00"

// Literal renders v as a SQL literal of semantic type t. v is coerced to t
// first; nil renders as NULL.
func (d *Dialect) Literal(v any, t core.SemanticType) (string, error) {
	cv, err := core.Coerce(v, t)
	if err != nil {
		return "", err
	}
	if cv == nil {
		return "NULL", nil
	}
	switch t {
	case core.TypeString:
		return d.QuoteString(cv.(string)), nil
	case core.TypeInteger:
		return strconv.FormatInt(cv.(int64), 10), nil
	case core.TypeDecimal:
		return d.Cast(d.QuoteString(cv.(string)), core.TypeString, core.TypeDecimal), nil
	case core.TypeTimestamp:
		ts := cv.(time.Time).Truncate(time.Microsecond).Format(TimestampLiteralLayout)
		return d.Cast(d.QuoteString(ts), core.TypeString, core.TypeTimestamp), nil
	case core.TypeBoolean:
		if cv.(bool) {
			return "TRUE", nil
		}
		return "FALSE", nil
	case core.TypeJSON:
		return d.Cast(d.QuoteString(string(cv.(json.RawMessage))), core.TypeString, core.TypeJSON), nil
	}
	return "", fmt.Errorf("dialect %s: no literal form for %s", d.name, t)
}

// InsertSQL renders a multi-row INSERT ... VALUES statement. Each row holds
// one value per schema column, in schema order.
func (d *Dialect) InsertSQL(ref core.TableRef, schema *core.Schema, rows [][]any) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("insert into %s: no rows", ref)
	}
	cols := schema.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.QuoteIdentifier(c.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES", d.QualifyRef(ref), strings.Join(names, ", "))
	for ri, row := range rows {
		if len(row) != len(cols) {
			return "", fmt.Errorf("insert into %s: row %d has %d values, want %d", ref, ri, len(row), len(cols))
		}
		vals := make([]string, len(cols))
		for ci, c := range cols {
			lit, err := d.Literal(row[ci], c.Type)
			if err != nil {
				return "", fmt.Errorf("insert into %s: row %d column %s: %w", ref, ri, c.Name, err)
			}
			vals[ci] = lit
		}
		if ri > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  (" + strings.Join(vals, ", ") + ")")
	}
	return b.String(), nil
}
