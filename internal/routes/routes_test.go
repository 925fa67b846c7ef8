package routes

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleYAML = `
routes:
  - name: default
    context: autodial-ivr
    extension: s
    priority: 1
    trunk: provider-a
  - name: survey
    context: survey-ivr
    trunk: provider-b
`

func TestParse(t *testing.T) {
	table, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	if !table.Has("default") || !table.Has("survey") {
		t.Error("expected routes are missing")
	}
	if table.Has("missing") {
		t.Error("Has(missing) = true")
	}

	r, ok := table.Get("default")
	if !ok {
		t.Fatal("Get(default) missed")
	}
	want := Route{Name: "default", Context: "autodial-ivr", Extension: "s", Priority: 1, Trunk: "provider-a"}
	if r != want {
		t.Errorf("Get(default) = %+v, want %+v", r, want)
	}

	// Partial routes keep zero values for the fields they omit.
	survey, _ := table.Get("survey")
	if survey.Extension != "" || survey.Priority != 0 {
		t.Errorf("survey route filled omitted fields: %+v", survey)
	}

	if trunk := table.TrunkFor("survey"); trunk != "provider-b" {
		t.Errorf("TrunkFor(survey) = %q, want provider-b", trunk)
	}
	if trunk := table.TrunkFor("missing"); trunk != "" {
		t.Errorf("TrunkFor(missing) = %q, want empty", trunk)
	}

	if got := table.Names(); !reflect.DeepEqual(got, []string{"default", "survey"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unnamed route", "routes:\n  - context: somewhere\n"},
		{"duplicate name", "routes:\n  - name: a\n  - name: a\n"},
		{"not yaml", "routes: [',"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Error("Parse() accepted invalid table")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !table.Has("survey") {
		t.Error("loaded table is missing the survey route")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	table, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("empty path table has %d routes", table.Len())
	}
	if table.Has("anything") {
		t.Error("empty table claims to have a route")
	}
}
