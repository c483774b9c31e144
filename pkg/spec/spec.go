// Package spec defines declarative transformation specs and their
// validation.
//
// A Spec names a source table and an ordered list of operations. Validate
// threads the source schema through every operation, so each column
// reference resolves against the schema produced by the previous step.
package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Spec is a declarative description of a transformation.
type Spec struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"-" yaml:"description,omitempty"`
	Source      core.TableRef `json:"source" yaml:"source"`
	// Columns optionally declares the source schema. When omitted the
	// schema comes from the seeded fixture or the warehouse catalog.
	Columns    []core.Column `json:"columns,omitempty" yaml:"columns,omitempty"`
	Target     *Target       `json:"target,omitempty" yaml:"target,omitempty"`
	Operations Operations    `json:"operations" yaml:"operations"`
}

// Target is where the compiled query is materialized.
type Target struct {
	Schema               string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Table                string `json:"table,omitempty" yaml:"table,omitempty"`
	core.Materialization `yaml:",inline"`
}

// Operations is an ordered operation list. In YAML every item is a mapping
// with a single key naming the operation kind:
//
//	operations:
//	  - rename: {from: a, to: b}
//	  - cast: {column: b, type: integer}
type Operations []Operation

// UnmarshalYAML decodes the single-key operation mappings.
func (ops *Operations) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: operations must be a list", node.Line)
	}
	out := make(Operations, 0, len(node.Content))
	for i, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return fmt.Errorf("line %d: operation %d must be a mapping with exactly one kind", item.Line, i)
		}
		kind := core.OperationKind(item.Content[0].Value)
		op := newOperation(kind)
		if op == nil {
			return fmt.Errorf("line %d: operation %d: unknown kind %q", item.Line, i, kind)
		}
		if err := decodeStrict(item.Content[1], op); err != nil {
			return fmt.Errorf("line %d: operation %d (%s): %w", item.Line, i, kind, err)
		}
		out = append(out, op)
	}
	*ops = out
	return nil
}

// MarshalJSON encodes operations as single-key objects, mirroring YAML.
func (ops Operations) MarshalJSON() ([]byte, error) {
	out := make([]map[core.OperationKind]Operation, len(ops))
	for i, op := range ops {
		out[i] = map[core.OperationKind]Operation{op.Kind(): op}
	}
	return json.Marshal(out)
}

// UnmarshalYAML accepts either {from, to} or an ordered mapping
// {columns: {old: new, ...}}.
func (r *Rename) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("rename must be a mapping")
	}
	var pair RenamePair
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "from":
			pair.From = val.Value
		case "to":
			pair.To = val.Value
		case "columns":
			if val.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: rename columns must be a mapping of old: new", val.Line)
			}
			for j := 0; j+1 < len(val.Content); j += 2 {
				r.Columns = append(r.Columns, RenamePair{From: val.Content[j].Value, To: val.Content[j+1].Value})
			}
		default:
			return fmt.Errorf("line %d: field %s not found in rename", key.Line, key.Value)
		}
	}
	if pair.From != "" || pair.To != "" {
		r.Columns = append([]RenamePair{pair}, r.Columns...)
	}
	return nil
}

// decodeStrict decodes node into out, rejecting unknown fields.
func decodeStrict(node *yaml.Node, out any) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Parse decodes a spec from YAML.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("invalid spec: %w", err)
	}
	return &s, nil
}

// Load reads and parses a spec file.
func Load(fs afero.Fs, path string) (*Spec, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// DeclaredSchema returns the schema declared by Columns, or nil when none
// is declared.
func (s *Spec) DeclaredSchema() (*core.Schema, error) {
	if len(s.Columns) == 0 {
		return nil, nil
	}
	return core.NewSchema(s.Columns...)
}
