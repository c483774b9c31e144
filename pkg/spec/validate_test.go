package spec

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawOrders() *core.Schema {
	return core.MustSchema(
		core.Column{Name: "order_id", Type: core.TypeString},
		core.Column{Name: "amount", Type: core.TypeString},
		core.Column{Name: "payload", Type: core.TypeJSON},
		core.Column{Name: "updated_at", Type: core.TypeTimestamp},
	)
}

func newSpec(ops ...Operation) *Spec {
	return &Spec{Name: "t", Source: core.TableRef{Schema: "raw", Table: "orders"}, Operations: ops}
}

func TestValidate_ThreadsSchema(t *testing.T) {
	s, err := Parse([]byte(ordersSpec))
	require.NoError(t, err)

	v, err := Validate(s, nil)
	require.NoError(t, err)

	require.Len(t, v.Steps, 5)
	assert.Equal(t, []string{"id", "amount", "payload", "updated_at"}, v.Steps[0].Output.Names())
	amount, _ := v.Steps[1].Output.Lookup("amount")
	assert.Equal(t, core.TypeDecimal, amount.Type)
	assert.Equal(t, []string{"id", "amount", "customer_id", "tier", "updated_at"}, v.Steps[2].Output.Names())
	assert.True(t, v.Output.Equal(v.Steps[4].Output))
	assert.Equal(t, "orders_latest", v.Target.Table)
	assert.NotZero(t, v.Fingerprint())
}

func TestValidate_SourceSchema(t *testing.T) {
	s := newSpec()
	_, err := Validate(s, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no known schema")

	v, err := Validate(s, rawOrders())
	require.NoError(t, err)
	assert.True(t, v.Output.Equal(rawOrders()))
	assert.Equal(t, "t", v.Target.Table)
	assert.Equal(t, core.MaterializationTable, v.Target.Kind())

	s.Columns = []core.Column{{Name: "order_id", Type: core.TypeInteger}}
	_, err = Validate(s, rawOrders())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")
}

func TestValidate_Deterministic(t *testing.T) {
	s, err := Parse([]byte(ordersSpec))
	require.NoError(t, err)
	a, err := Validate(s, nil)
	require.NoError(t, err)
	b, err := Validate(s, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	s.Description = "changed"
	c, err := Validate(s, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), c.Fingerprint())

	s.Operations = s.Operations[:4]
	d, err := Validate(s, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestValidate_RenameIsSequential(t *testing.T) {
	src := core.MustSchema(
		core.Column{Name: "a", Type: core.TypeString},
		core.Column{Name: "b", Type: core.TypeInteger},
	)
	swap := &Rename{Columns: []RenamePair{{"a", "tmp"}, {"b", "a"}, {"tmp", "b"}}}
	v, err := Validate(newSpec(swap), src)
	require.NoError(t, err)
	assert.Equal(t, "(b string, a integer)", v.Output.String())

	clash := &Rename{Columns: []RenamePair{{"a", "b"}}}
	_, err = Validate(newSpec(clash), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate output column")
}

func TestValidate_Join(t *testing.T) {
	src := core.MustSchema(
		core.Column{Name: "id", Type: core.TypeInteger},
		core.Column{Name: "customer_id", Type: core.TypeInteger},
	)
	customers := []core.Column{
		{Name: "id", Type: core.TypeInteger},
		{Name: "name", Type: core.TypeString},
		{Name: "tier", Type: core.TypeString},
	}

	all := &Join{Table: core.TableRef{Table: "customers"}, Columns: customers, On: []JoinKey{{Left: "customer_id", Right: "id"}}}
	v, err := Validate(newSpec(all), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "customer_id", "name", "tier"}, v.Output.Names())

	picked := &Join{
		Table: core.TableRef{Table: "customers"}, Columns: customers, Type: JoinLeft,
		On:     []JoinKey{{Left: "customer_id", Right: "id"}},
		Select: []JoinSelect{{Column: "name", As: "customer_name"}},
	}
	v, err = Validate(newSpec(picked), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "customer_id", "customer_name"}, v.Output.Names())

	clash := &Join{
		Table: core.TableRef{Table: "customers"}, Columns: customers,
		On:     []JoinKey{{Left: "customer_id", Right: "id"}},
		Select: []JoinSelect{{Column: "id"}},
	}
	_, err = Validate(newSpec(clash), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate output column")
}

func TestValidate_Aggregate(t *testing.T) {
	src := core.MustSchema(
		core.Column{Name: "region", Type: core.TypeString},
		core.Column{Name: "qty", Type: core.TypeInteger},
		core.Column{Name: "price", Type: core.TypeDecimal},
	)
	agg := &Aggregate{
		GroupBy: []string{"region"},
		Aggregations: []Aggregation{
			{Func: AggCount},
			{Func: AggSum, Column: "qty"},
			{Func: AggAvg, Column: "qty", As: "avg_qty"},
			{Func: AggMax, Column: "price"},
			{Func: AggCountDistinct, Column: "price"},
		},
	}
	v, err := Validate(newSpec(agg), src)
	require.NoError(t, err)
	assert.Equal(t,
		"(region string, count integer, sum_qty integer, avg_qty decimal, max_price decimal, count_distinct_price integer)",
		v.Output.String())
}

func TestValidate_AmbiguousDedupe(t *testing.T) {
	_, err := Validate(newSpec(&Dedupe{Keys: []string{"order_id"}}), rawOrders())
	require.Error(t, err)

	var amb *core.AmbiguousDedupeError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, 0, amb.Index)
	assert.Equal(t, []string{"order_id"}, amb.Keys)
}

func TestValidate_AmbiguousDedupeWins(t *testing.T) {
	tests := []struct {
		name  string
		dedup *Dedupe
	}{
		{"no keys", &Dedupe{}},
		{"unknown key", &Dedupe{Keys: []string{"nope"}}},
		{"json key", &Dedupe{Keys: []string{"payload"}}},
		{"order by without column", &Dedupe{Keys: []string{"order_id"}, OrderBy: &OrderBy{Direction: Desc}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(newSpec(tt.dedup), rawOrders())
			var amb *core.AmbiguousDedupeError
			require.ErrorAs(t, err, &amb)
			assert.Equal(t, 0, amb.Index)
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		spec   *Spec
		index  int
		column string
		want   string
	}{
		{"bad spec name", &Spec{Name: "bad-name", Source: core.TableRef{Table: "orders"}}, -1, "", "not a valid identifier"},
		{"bad source", &Spec{Name: "x", Source: core.TableRef{Table: ""}}, -1, "", "source table"},
		{"empty rename", newSpec(&Rename{}), 0, "", "at least one column"},
		{"rename missing column", newSpec(&Rename{Columns: []RenamePair{{"nope", "x"}}}), 0, "nope", "does not exist"},
		{"rename bad target", newSpec(&Rename{Columns: []RenamePair{{"amount", "1x"}}}), 0, "1x", "not a valid identifier"},
		{"cast unknown type", newSpec(&Cast{Column: "amount", Type: "float"}), 0, "amount", "unknown type"},
		{"cast missing column", newSpec(&Cast{Column: "nope", Type: core.TypeString}), 0, "nope", "does not exist"},
		{"cast not portable", newSpec(
			&Cast{Column: "amount", Type: core.TypeDecimal},
			&Cast{Column: "amount", Type: core.TypeString},
		), 1, "amount", "cannot cast decimal to string"},
		{"dedupe no keys", newSpec(&Dedupe{OrderBy: &OrderBy{Column: "updated_at"}}), 0, "", "at least one key"},
		{"dedupe json key", newSpec(&Dedupe{Keys: []string{"payload"}, OrderBy: &OrderBy{Column: "updated_at"}}), 0, "payload", "cannot be used as keys"},
		{"dedupe bad direction", newSpec(&Dedupe{Keys: []string{"order_id"}, OrderBy: &OrderBy{Column: "updated_at", Direction: "up"}}), 0, "updated_at", "unknown direction"},
		{"dedupe order by json", newSpec(&Dedupe{Keys: []string{"order_id"}, OrderBy: &OrderBy{Column: "payload"}}), 0, "payload", "ordering"},
		{"flatten non json", newSpec(&Flatten{Column: "amount", Fields: []FlattenField{{Path: "a", Type: core.TypeString}}}), 0, "amount", "needs a json column"},
		{"flatten no fields", newSpec(&Flatten{Column: "payload"}), 0, "payload", "at least one field"},
		{"flatten bad path", newSpec(&Flatten{Column: "payload", Fields: []FlattenField{{Path: "a..b", Type: core.TypeString}}}), 0, "payload", "segment"},
		{"flatten bad type", newSpec(&Flatten{Column: "payload", Fields: []FlattenField{{Path: "a", Type: "map"}}}), 0, "payload", "unknown type"},
		{"flatten name clash", newSpec(&Flatten{Column: "payload", Fields: []FlattenField{{Path: "amount", Type: core.TypeString}}}), 0, "amount", "duplicate output column"},
		{"join no keys", newSpec(&Join{Table: core.TableRef{Table: "c"}, Columns: []core.Column{{Name: "id", Type: core.TypeString}}}), 0, "", "at least one key"},
		{"join bad type", newSpec(&Join{Table: core.TableRef{Table: "c"}, Type: "full", Columns: []core.Column{{Name: "id", Type: core.TypeString}}, On: []JoinKey{{"order_id", "id"}}}), 0, "", "unknown join type"},
		{"join key type mismatch", newSpec(&Join{Table: core.TableRef{Table: "c"}, Columns: []core.Column{{Name: "id", Type: core.TypeInteger}}, On: []JoinKey{{"order_id", "id"}}}), 0, "order_id", "type mismatch"},
		{"join missing right key", newSpec(&Join{Table: core.TableRef{Table: "c"}, Columns: []core.Column{{Name: "id", Type: core.TypeString}}, On: []JoinKey{{"order_id", "oid"}}}), 0, "oid", "does not exist in c"},
		{"join no columns", newSpec(&Join{Table: core.TableRef{Table: "c"}, On: []JoinKey{{"order_id", "id"}}}), 0, "", "needs the columns"},
		{"aggregate none", newSpec(&Aggregate{GroupBy: []string{"order_id"}}), 0, "", "at least one aggregation"},
		{"aggregate unknown func", newSpec(&Aggregate{Aggregations: []Aggregation{{Func: "median", Column: "amount"}}}), 0, "amount", "unknown aggregate function"},
		{"sum of string", newSpec(&Aggregate{Aggregations: []Aggregation{{Func: AggSum, Column: "amount"}}}), 0, "amount", "numeric"},
		{"max of json", newSpec(&Aggregate{Aggregations: []Aggregation{{Func: AggMax, Column: "payload"}}}), 0, "payload", "orderable"},
		{"sum without column", newSpec(&Aggregate{Aggregations: []Aggregation{{Func: AggSum}}}), 0, "", "needs a column"},
		{"filter none", newSpec(&Filter{}), 0, "", "at least one condition"},
		{"filter unknown op", newSpec(&Filter{Conditions: []Condition{{Column: "amount", Op: "like", Value: "x"}}}), 0, "amount", "unknown filter op"},
		{"filter null literal", newSpec(&Filter{Conditions: []Condition{{Column: "amount", Op: OpEq}}}), 0, "amount", "is_null"},
		{"filter bad literal", newSpec(&Filter{Conditions: []Condition{{Column: "updated_at", Op: OpGt, Value: "yesterday"}}}), 0, "updated_at", "bad timestamp literal"},
		{"filter is_null with value", newSpec(&Filter{Conditions: []Condition{{Column: "amount", Op: OpIsNull, Value: "x"}}}), 0, "amount", "takes no value"},
		{"filter empty in", newSpec(&Filter{Conditions: []Condition{{Column: "amount", Op: OpIn}}}), 0, "amount", "at least one value"},
		{"filter compare json", newSpec(&Filter{Conditions: []Condition{{Column: "payload", Op: OpEq, Value: "{}"}}}), 0, "payload", "cannot compare"},
		{"filter after rename uses new name", newSpec(
			&Rename{Columns: []RenamePair{{"amount", "total"}}},
			&Filter{Conditions: []Condition{{Column: "amount", Op: OpNotNull}}},
		), 1, "amount", "does not exist"},
		{"nil operation", newSpec(nil), 0, "", "operation is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.spec, rawOrders())
			require.Error(t, err)

			var se *core.SchemaError
			require.True(t, errors.As(err, &se), "got %T: %v", err, err)
			assert.Equal(t, tt.index, se.Index)
			assert.Equal(t, tt.column, se.Column)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_Target(t *testing.T) {
	inc := func(keys ...string) *Spec {
		s := newSpec()
		s.Target = &Target{Materialization: core.Materialization{Type: core.MaterializationIncremental, UniqueKey: keys}}
		return s
	}

	v, err := Validate(inc("order_id"), rawOrders())
	require.NoError(t, err)
	assert.Equal(t, "t", v.Target.Table)

	tests := []struct {
		name string
		spec *Spec
		want string
	}{
		{"no key", inc(), "needs a unique_key"},
		{"missing key", inc("nope"), "does not exist in the output"},
		{"json key", inc("payload"), "cannot be used as keys"},
		{"key on table", func() *Spec {
			s := newSpec()
			s.Target = &Target{Materialization: core.Materialization{UniqueKey: []string{"order_id"}}}
			return s
		}(), "only applies to incremental"},
		{"unknown kind", func() *Spec {
			s := newSpec()
			s.Target = &Target{Materialization: core.Materialization{Type: "snapshot"}}
			return s
		}(), "unknown materialization"},
		{"bad table", func() *Spec {
			s := newSpec()
			s.Target = &Target{Table: "a b"}
			return s
		}(), "target table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.spec, rawOrders())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
