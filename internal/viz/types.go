// Package viz turns graph snapshots into the element payload consumed by the
// Cytoscape.js renderer and writes the self-contained explorer page.
package viz

import "github.com/voltask/graphx/internal/graph"

// Elements is the style-annotated element list handed to the renderer.
type Elements struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a renderable node.
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	VisualSize float64        `json:"visualSize"`

	// Display hints
	Color   string `json:"color,omitempty"`
	Matched bool   `json:"matched,omitempty"`
}

// Edge is a renderable edge. ID is the from|to|type key.
type Edge struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// IsEmpty returns true if there are no nodes to draw.
func (e *Elements) IsEmpty() bool {
	return len(e.Nodes) == 0
}

// Style supplies sizing and colouring to BuildElements.
type Style struct {
	Scale   graph.SizeScale
	ColorOf func(nodeType string) string
}
