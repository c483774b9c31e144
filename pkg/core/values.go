package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Row is a single record keyed by column name.
type Row map[string]any

// ResultSet is a fully fetched query result.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Records returns the rows keyed by column name.
func (r *ResultSet) Records() []Row {
	if r == nil {
		return nil
	}
	out := make([]Row, len(r.Rows))
	for i, vals := range r.Rows {
		row := make(Row, len(r.Columns))
		for j, col := range r.Columns {
			if j < len(vals) {
				row[col] = vals[j]
			}
		}
		out[i] = row
	}
	return out
}

// DecimalScale is the number of fractional digits kept for decimal values.
// It matches BigQuery's NUMERIC scale.
const DecimalScale = 9

// timestampLayouts are tried in order when parsing timestamp text. Layouts
// without a zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses timestamp text in any of the formats warehouses and
// fixture files commonly use. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}

// ParseDecimal parses decimal text or a number into a rational value.
func ParseDecimal(v any) (*big.Rat, error) {
	switch x := v.(type) {
	case *big.Rat:
		return new(big.Rat).Set(x), nil
	case big.Rat:
		return new(big.Rat).Set(&x), nil
	case *big.Int:
		return new(big.Rat).SetInt(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("non-finite decimal %v", x)
		}
		return new(big.Rat).SetFloat64(x), nil
	case float32:
		return ParseDecimal(float64(x))
	case json.Number:
		return ParseDecimal(string(x))
	case []byte:
		return ParseDecimal(string(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" || strings.Contains(s, "/") {
			return nil, fmt.Errorf("cannot parse %q as a decimal", x)
		}
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return nil, fmt.Errorf("cannot parse %q as a decimal", x)
		}
		return r, nil
	}
	if i, ok := asInt64(v); ok {
		return new(big.Rat).SetInt64(i), nil
	}
	if s, ok := v.(fmt.Stringer); ok {
		return ParseDecimal(s.String())
	}
	return nil, fmt.Errorf("cannot use %T as a decimal", v)
}

// FormatDecimal renders r rounded to DecimalScale digits without trailing zeros.
func FormatDecimal(r *big.Rat) string {
	s := r.FloatString(DecimalScale)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// Coerce converts a loosely typed value (from YAML, CSV or a driver) into the
// canonical Go representation of t:
//
//	string    -> string
//	integer   -> int64
//	decimal   -> string (decimal text, at most DecimalScale fractional digits)
//	timestamp -> time.Time (UTC)
//	boolean   -> bool
//	json      -> json.RawMessage (compact)
//
// nil is returned unchanged for every type.
func Coerce(v any, t SemanticType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case bool, int, int32, int64, float64:
			return fmt.Sprint(x), nil
		}
		return nil, fmt.Errorf("cannot use %T as string", v)

	case TypeInteger:
		if i, ok := asInt64(v); ok {
			return i, nil
		}
		switch x := v.(type) {
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("%v is not an integer", x)
			}
			// 2^63 is exact in float64; int64 holds [-2^63, 2^63).
			if x < math.MinInt64 || x >= -math.MinInt64 {
				return nil, fmt.Errorf("%v is out of range for an integer", x)
			}
			return int64(x), nil
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as an integer", x)
			}
			return i, nil
		case json.Number:
			return x.Int64()
		}
		return nil, fmt.Errorf("cannot use %T as integer", v)

	case TypeDecimal:
		r, err := ParseDecimal(v)
		if err != nil {
			return nil, err
		}
		return FormatDecimal(r), nil

	case TypeTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			return ParseTimestamp(x)
		}
		return nil, fmt.Errorf("cannot use %T as timestamp", v)

	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as a boolean", x)
			}
			return b, nil
		}
		if i, ok := asInt64(v); ok && (i == 0 || i == 1) {
			return i == 1, nil
		}
		return nil, fmt.Errorf("cannot use %T as boolean", v)

	case TypeJSON:
		var raw []byte
		switch x := v.(type) {
		case json.RawMessage:
			raw = x
		case []byte:
			raw = x
		case string:
			raw = []byte(x)
		default:
			b, err := json.Marshal(normalizeYAML(x))
			if err != nil {
				return nil, fmt.Errorf("cannot encode %T as json: %w", v, err)
			}
			raw = b
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid json %q", string(raw))
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return json.RawMessage(buf.Bytes()), nil
	}
	return nil, fmt.Errorf("unknown semantic type %q", t)
}

// normalizeYAML converts map[any]any values (produced by some YAML decoders)
// into map[string]any so they can be JSON encoded.
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[k] = normalizeYAML(val)
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalizeYAML(val)
		}
		return out
	}
	return v
}
