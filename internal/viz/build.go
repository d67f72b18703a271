package viz

import "github.com/voltask/graphx/internal/graph"

// BuildElements converts a visible subgraph into renderer elements. Visual
// sizes come from degrees within visible itself. Node ids listed in matched
// are flagged for search highlighting.
func BuildElements(visible graph.Snapshot, style Style, matched []string) Elements {
	degrees := graph.DegreeMap(visible.Nodes, visible.Edges)

	hits := make(map[string]bool, len(matched))
	for _, id := range matched {
		hits[id] = true
	}

	out := Elements{
		Nodes: make([]Node, 0, len(visible.Nodes)),
		Edges: make([]Edge, 0, len(visible.Edges)),
	}

	for _, n := range visible.Nodes {
		node := Node{
			ID:         n.ID,
			Label:      n.Label,
			Type:       n.Type,
			Properties: n.Properties,
			VisualSize: style.Scale.Size(degrees[n.ID]),
			Matched:    hits[n.ID],
		}
		if style.ColorOf != nil {
			node.Color = style.ColorOf(n.Type)
		}
		out.Nodes = append(out.Nodes, node)
	}

	for _, e := range visible.Edges {
		out.Edges = append(out.Edges, Edge{
			ID:     e.Key().String(),
			Source: e.From,
			Target: e.To,
			Type:   e.Type,
			Weight: e.Weight,
		})
	}

	return out
}
