// Package modules loads the table of dashboard modules. Every enabled module
// becomes a tab; the handler dispatches to the renderer registered for its ID.
package modules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Known module IDs.
const (
	Questions  = "questions"
	IRT        = "irt"
	Expert     = "expert"
	Categorize = "categorize"
)

var known = map[string]bool{Questions: true, IRT: true, Expert: true, Categorize: true}

//go:embed modules.yaml
var defaultTable []byte

// Module is one row of the table.
type Module struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Enabled     bool   `yaml:"enabled"`
}

// Table is the ordered module list.
type Table struct {
	Modules []Module `yaml:"modules"`
}

// Enabled returns the enabled modules in table order.
func (t *Table) Enabled() []Module {
	var out []Module
	for _, m := range t.Modules {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// Lookup returns the enabled module with the given ID.
func (t *Table) Lookup(id string) (Module, bool) {
	for _, m := range t.Modules {
		if m.ID == id && m.Enabled {
			return m, true
		}
	}
	return Module{}, false
}

// Default returns the embedded table with all four modules.
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded module table: %v", err))
	}
	return t
}

// Load reads a table from path, or returns the default for an empty path.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module table: %w", err)
	}
	return Parse(data)
}

// Parse decodes a single YAML document. Unknown fields, unknown or duplicate
// module IDs and an empty table are errors.
func Parse(data []byte) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("parse module table: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse module table: expected a single document")
	}

	if len(t.Modules) == 0 {
		return nil, fmt.Errorf("module table is empty")
	}
	seen := make(map[string]bool)
	for i, m := range t.Modules {
		if !known[m.ID] {
			return nil, fmt.Errorf("unknown module %q", m.ID)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate module %q", m.ID)
		}
		seen[m.ID] = true
		if m.Name == "" {
			t.Modules[i].Name = m.ID
		}
	}
	return &t, nil
}
