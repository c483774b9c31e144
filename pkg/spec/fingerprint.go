package spec

import (
	"encoding/json"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/zeebo/xxh3"
)

// fingerprint hashes the canonical JSON form of a spec and its source
// schema. The description does not take part.
func fingerprint(s *Spec, source *core.Schema) (uint64, error) {
	data, err := json.Marshal(struct {
		Spec   *Spec         `json:"spec"`
		Source []core.Column `json:"source"`
	}{s, source.Columns()})
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(data), nil
}
