package dialect

import (
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
)

// Standard rendering hooks. Dialects compose these or override them with
// backend-specific hooks on the Builder.

// StandardCast renders CAST(expr AS <type>).
func StandardCast(d *Dialect, expr string, _, to core.SemanticType) string {
	typ, err := d.MapType(to)
	if err != nil {
		typ = strings.ToUpper(string(to))
	}
	return "CAST(" + expr + " AS " + typ + ")"
}

// StandardJSONValue renders the SQL/JSON path functions
// JSON_VALUE(expr, '$.a.b') and JSON_QUERY(expr, '$.a.b').
func StandardJSONValue(d *Dialect, expr string, path []string, asJSON bool) string {
	fn := "JSON_VALUE"
	if asJSON {
		fn = "JSON_QUERY"
	}
	return fn + "(" + expr + ", " + d.QuoteString(JSONPath(path)) + ")"
}

// JSONPath renders path segments as a JSONPath expression ($.a.b).
func JSONPath(path []string) string {
	return "$." + strings.Join(path, ".")
}
