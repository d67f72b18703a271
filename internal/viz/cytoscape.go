package viz

import (
	"encoding/json"
	"fmt"
)

// CytoscapeElements represents the Cytoscape.js data format.
type CytoscapeElements struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// CytoscapeNode represents a node in Cytoscape.js format.
type CytoscapeNode struct {
	Data    Node   `json:"data"`
	Classes string `json:"classes,omitempty"`
}

// CytoscapeEdge represents an edge in Cytoscape.js format.
type CytoscapeEdge struct {
	Data Edge `json:"data"`
}

// ToCytoscape wraps elements in Cytoscape's {data: ...} envelope. Search hits
// carry the "matched" class.
func (e *Elements) ToCytoscape() CytoscapeElements {
	out := CytoscapeElements{
		Nodes: make([]CytoscapeNode, 0, len(e.Nodes)),
		Edges: make([]CytoscapeEdge, 0, len(e.Edges)),
	}
	for _, n := range e.Nodes {
		cn := CytoscapeNode{Data: n}
		if n.Matched {
			cn.Classes = "matched"
		}
		out.Nodes = append(out.Nodes, cn)
	}
	for _, ed := range e.Edges {
		out.Edges = append(out.Edges, CytoscapeEdge{Data: ed})
	}
	return out
}

// ToCytoscapeJSON converts Elements to Cytoscape.js JSON format.
func (e *Elements) ToCytoscapeJSON() (string, error) {
	jsonBytes, err := json.Marshal(e.ToCytoscape())
	if err != nil {
		return "", fmt.Errorf("marshaling Cytoscape elements to JSON: %w", err)
	}
	return string(jsonBytes), nil
}
