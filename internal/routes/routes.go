// Package routes loads the named dial-route table. A route binds a friendly
// name to the dialplan entry and trunk an originate should use, so operators
// pick "survey" instead of spelling out PJSIP endpoints.
package routes

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Route is one named dial route.
type Route struct {
	Name      string `yaml:"name"`
	Context   string `yaml:"context"`
	Extension string `yaml:"extension"`
	Priority  int    `yaml:"priority"`
	Trunk     string `yaml:"trunk"`
}

type routesFile struct {
	Routes []Route `yaml:"routes"`
}

// Table is an immutable lookup of named dial routes.
type Table struct {
	routes map[string]Route
}

// Load reads the route table from a YAML file. An empty path yields an empty
// table, so deployments without named routes run on the global dial defaults.
func Load(path string) (*Table, error) {
	if path == "" {
		return &Table{routes: map[string]Route{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}
	table, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Parse builds a table from raw YAML.
func Parse(data []byte) (*Table, error) {
	var f routesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse routes: %w", err)
	}

	table := &Table{routes: make(map[string]Route, len(f.Routes))}
	for _, r := range f.Routes {
		if r.Name == "" {
			return nil, fmt.Errorf("route without a name")
		}
		if _, dup := table.routes[r.Name]; dup {
			return nil, fmt.Errorf("duplicate route %q", r.Name)
		}
		table.routes[r.Name] = r
	}
	return table, nil
}

// Has reports whether a route with the given name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.routes[name]
	return ok
}

// Get returns the named route.
func (t *Table) Get(name string) (Route, bool) {
	r, ok := t.routes[name]
	return r, ok
}

// TrunkFor returns the trunk of the named route, or "" when the route does
// not exist or carries no trunk.
func (t *Table) TrunkFor(name string) string {
	return t.routes[name].Trunk
}

// Names returns all route names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.routes))
	for name := range t.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded routes.
func (t *Table) Len() int {
	return len(t.routes)
}
