package viz

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultLayout is used when no layout has been chosen.
const DefaultLayout = "force"

// Layouts maps user-facing layout names to Cytoscape.js layout algorithms.
type Layouts map[string]string

// DefaultLayouts returns the built-in layout enumeration.
func DefaultLayouts() Layouts {
	return Layouts{
		"force":     "cose",
		"grid":      "grid",
		"circle":    "circle",
		"hierarchy": "breadthfirst",
	}
}

// Names returns the layout names in sorted order.
func (l Layouts) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks that name is one of the layouts. Empty selects the default.
func (l Layouts) Validate(name string) error {
	if name == "" {
		return nil
	}
	if _, ok := l[name]; !ok {
		return fmt.Errorf("invalid layout %q: must be one of %s", name, strings.Join(l.Names(), ", "))
	}
	return nil
}

// Cytoscape returns the Cytoscape.js algorithm for name, falling back to the
// default layout's algorithm for unknown names.
func (l Layouts) Cytoscape(name string) string {
	if alg, ok := l[name]; ok {
		return alg
	}
	if alg, ok := l[DefaultLayout]; ok {
		return alg
	}
	return "cose"
}
