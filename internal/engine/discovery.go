package engine

import (
	"bytes"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/spec"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Case is one integration test: a spec, the fixture sets it reads and the
// rows it must produce.
//
//	name: latest_events
//	fixtures: [../fixtures/events.yaml]
//	spec: ../specs/latest_events.yaml   # or an inline spec mapping
//	warehouses: [postgres, duckdb]      # optional
//	expected:
//	  - {b: 1, v: new}
type Case struct {
	Name string
	Path string
	// Fixtures are fixture-set files, resolved against the case directory.
	Fixtures []string
	Spec     *spec.Spec
	Expected []core.Row
	// Warehouses restricts the case to the named targets; empty means all.
	Warehouses []string
}

type caseFile struct {
	Name       string           `yaml:"name"`
	Fixtures   []string         `yaml:"fixtures"`
	Spec       yaml.Node        `yaml:"spec"`
	Expected   []map[string]any `yaml:"expected"`
	Warehouses []string         `yaml:"warehouses"`
}

// RunsOn reports whether the case applies to the named target.
func (c *Case) RunsOn(target string) bool {
	if len(c.Warehouses) == 0 {
		return true
	}
	for _, w := range c.Warehouses {
		if w == target {
			return true
		}
	}
	return false
}

// LoadCase reads one case file.
func LoadCase(fsys afero.Fs, path string) (*Case, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case %s: %w", path, err)
	}
	var raw caseFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("case %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	c := &Case{Name: raw.Name, Path: path, Warehouses: raw.Warehouses}
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for _, f := range raw.Fixtures {
		c.Fixtures = append(c.Fixtures, filepath.Join(dir, f))
	}

	switch raw.Spec.Kind {
	case yaml.ScalarNode:
		c.Spec, err = spec.Load(fsys, filepath.Join(dir, raw.Spec.Value))
	case yaml.MappingNode:
		var out bytes.Buffer
		enc := yaml.NewEncoder(&out)
		if err = enc.Encode(&raw.Spec); err == nil {
			c.Spec, err = spec.Parse(out.Bytes())
		}
	default:
		err = fmt.Errorf("spec must be a file path or a mapping")
	}
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", path, err)
	}

	for _, row := range raw.Expected {
		c.Expected = append(c.Expected, core.Row(row))
	}
	return c, nil
}

// Discover loads every *.yaml case under dir, sorted by path. Directories
// named fixtures or specs hold case inputs and are skipped.
func Discover(fsys afero.Fs, dir string) ([]*Case, error) {
	var paths []string
	err := afero.Walk(fsys, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && (info.Name() == "fixtures" || info.Name() == "specs") {
				return filepath.SkipDir
			}
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover cases in %s: %w", dir, err)
	}
	sort.Strings(paths)

	cases := make([]*Case, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		c, err := LoadCase(fsys, p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("case %q is declared in both %s and %s", c.Name, prev, p)
		}
		seen[c.Name] = p
		cases = append(cases, c)
	}
	return cases, nil
}
