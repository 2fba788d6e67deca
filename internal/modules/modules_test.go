package modules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	tbl := Default()
	var ids []string
	for _, m := range tbl.Enabled() {
		ids = append(ids, m.ID)
	}
	if got := strings.Join(ids, ","); got != "questions,irt,expert,categorize" {
		t.Errorf("enabled modules = %s", got)
	}
	if m, ok := tbl.Lookup(Expert); !ok || m.Name == "" {
		t.Errorf("Lookup(expert) = %+v, %v", m, ok)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{"valid", "modules:\n  - id: irt\n    enabled: true\n", ""},
		{"unknown id", "modules:\n  - id: charts\n    enabled: true\n", "unknown module"},
		{"unknown field", "modules:\n  - id: irt\n    colour: red\n", "field colour not found"},
		{"duplicate", "modules:\n  - id: irt\n  - id: irt\n", "duplicate module"},
		{"empty", "modules: []\n", "empty"},
		{"two documents", "modules:\n  - id: irt\n---\nmodules:\n  - id: expert\n", "single document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Parse([]byte(tt.in))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				if tbl.Modules[0].Name != "irt" {
					t.Errorf("name should default to the id, got %q", tbl.Modules[0].Name)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.yaml")
	content := "modules:\n  - id: questions\n    enabled: true\n  - id: expert\n    enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tbl.Enabled()) != 1 {
		t.Errorf("expected 1 enabled module, got %d", len(tbl.Enabled()))
	}
	if _, ok := tbl.Lookup(Expert); ok {
		t.Error("disabled module must not be found")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
