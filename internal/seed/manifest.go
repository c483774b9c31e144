package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/ui4t/pkg/adapter"
	"github.com/leapstack-labs/ui4t/pkg/core"
)

// ManifestTable records the seed status of every fixture set in a schema.
const ManifestTable = "_ui4t_fixture_manifest"

// Manifest statuses.
const (
	StatusLoading  = "loading"
	StatusComplete = "complete"
	StatusPartial  = "partial"
)

var manifestSchema = core.MustSchema(
	core.Column{Name: "fixture_set", Type: core.TypeString},
	core.Column{Name: "status", Type: core.TypeString},
	core.Column{Name: "table_count", Type: core.TypeInteger},
	core.Column{Name: "row_count", Type: core.TypeInteger},
	core.Column{Name: "seeded_at", Type: core.TypeTimestamp},
)

// ManifestEntry is one manifest row.
type ManifestEntry struct {
	FixtureSet string
	Status     string
	Tables     int64
	Rows       int64
	SeededAt   time.Time
}

func ensureManifestSQL(target *adapter.Target) (string, error) {
	return target.Dialect().CreateTableIfNotExistsSQL(target.Ref(ManifestTable), manifestSchema)
}

// markSQL replaces the manifest row of e.FixtureSet.
func markSQL(target *adapter.Target, e ManifestEntry) ([]string, error) {
	d := target.Dialect()
	ref := target.Ref(ManifestTable)
	name, err := d.Literal(e.FixtureSet, core.TypeString)
	if err != nil {
		return nil, err
	}
	del := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.QualifyRef(ref), d.QuoteIdentifier("fixture_set"), name)
	ins, err := d.InsertSQL(ref, manifestSchema, [][]any{{e.FixtureSet, e.Status, e.Tables, e.Rows, e.SeededAt}})
	if err != nil {
		return nil, err
	}
	return []string{del, ins}, nil
}

// ReadManifest returns every manifest entry of the target schema. A schema
// that was never seeded has no manifest table and yields no entries.
func ReadManifest(ctx context.Context, target *adapter.Target) ([]ManifestEntry, error) {
	ref := target.Ref(ManifestTable)
	if _, err := target.Adapter.TableSchema(ctx, ref); err != nil {
		if target.Adapter.IsTransient(err) {
			return nil, fmt.Errorf("failed to inspect fixture manifest: %w", err)
		}
		return nil, nil
	}
	d := target.Dialect()
	rs, err := target.Adapter.Query(ctx, fmt.Sprintf("SELECT %s, %s, %s, %s, %s FROM %s ORDER BY %s",
		d.QuoteIdentifier("fixture_set"), d.QuoteIdentifier("status"),
		d.QuoteIdentifier("table_count"), d.QuoteIdentifier("row_count"),
		d.QuoteIdentifier("seeded_at"), d.QualifyRef(ref), d.QuoteIdentifier("fixture_set")))
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture manifest: %w", err)
	}

	entries := make([]ManifestEntry, 0, rs.Len())
	for _, row := range rs.Rows {
		var e ManifestEntry
		for i, t := range manifestSchema.Columns() {
			v, err := core.Coerce(row[i], t.Type)
			if err != nil {
				return nil, fmt.Errorf("fixture manifest column %s: %w", t.Name, err)
			}
			switch i {
			case 0:
				e.FixtureSet, _ = v.(string)
			case 1:
				e.Status, _ = v.(string)
			case 2:
				e.Tables, _ = v.(int64)
			case 3:
				e.Rows, _ = v.(int64)
			case 4:
				e.SeededAt, _ = v.(time.Time)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
