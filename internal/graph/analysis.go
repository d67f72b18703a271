package graph

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Visible restricts s to nodes whose type equals filterType (case-insensitive)
// and to edges whose endpoints both survive. FilterAll and "" keep every node.
func Visible(s Snapshot, filterType string) Snapshot {
	filterType = strings.ToLower(strings.TrimSpace(filterType))

	out := Snapshot{Nodes: make([]Node, 0, len(s.Nodes))}
	ids := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if filterType == "" || filterType == FilterAll || n.Type == filterType {
			out.Nodes = append(out.Nodes, n)
			ids[n.ID] = true
		}
	}

	out.Edges = make([]Edge, 0, len(s.Edges))
	for _, e := range s.Edges {
		if ids[e.From] && ids[e.To] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// DegreeMap counts edge endpoints per node. Every node maps to at least 0; a
// self-loop counts twice. Endpoints outside nodes are ignored.
func DegreeMap(nodes []Node, edges []Edge) map[string]int {
	deg := make(map[string]int, len(nodes))
	for _, n := range nodes {
		deg[n.ID] = 0
	}
	for _, e := range edges {
		if _, ok := deg[e.From]; ok {
			deg[e.From]++
		}
		if _, ok := deg[e.To]; ok {
			deg[e.To]++
		}
	}
	return deg
}

// SizeScale maps degree to node visual size: Min at degree 0, growing with
// ln(1+degree) by Factor, capped at Max.
type SizeScale struct {
	Min    float64 `yaml:"min_size" json:"min_size"`
	Max    float64 `yaml:"max_size" json:"max_size"`
	Factor float64 `yaml:"size_scale" json:"size_scale"`
}

// DefaultSizeScale returns the scale used when none is configured.
func DefaultSizeScale() SizeScale {
	return SizeScale{Min: 30, Max: 90, Factor: 12}
}

// Size returns the visual size for the given degree.
func (s SizeScale) Size(degree int) float64 {
	if degree <= 0 || s.Factor <= 0 || s.Max <= s.Min {
		return s.Min
	}
	return math.Min(s.Min+s.Factor*math.Log1p(float64(degree)), s.Max)
}

// SearchMatches returns the ids of nodes whose label contains term,
// case-insensitively, in node order. A blank term matches nothing.
func SearchMatches(nodes []Node, term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	var ids []string
	for _, n := range nodes {
		if strings.Contains(strings.ToLower(n.Label), term) {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// NodeDegree pairs a node id with its degree.
type NodeDegree struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Degree int    `json:"degree"`
}

// TopDegree returns up to limit nodes of s ordered by descending degree.
// Ties keep the order of s.Nodes.
func TopDegree(s Snapshot, limit int) []NodeDegree {
	if limit <= 0 {
		return []NodeDegree{}
	}

	deg := DegreeMap(s.Nodes, s.Edges)
	ranked := make([]NodeDegree, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		ranked = append(ranked, NodeDegree{ID: n.ID, Label: n.Label, Degree: deg[n.ID]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Degree > ranked[j].Degree
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Neighborhood returns every node within depth hops of id, treating edges as
// undirected, together with the edges whose endpoints are both reached.
// Output keeps the order of s.
func Neighborhood(s Snapshot, id string, depth int) (Snapshot, error) {
	if depth < 1 {
		return Snapshot{}, ErrInvalidDepth
	}

	known := false
	for _, n := range s.Nodes {
		if n.ID == id {
			known = true
			break
		}
	}
	if !known {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	adj := make(map[string][]string)
	for _, e := range s.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}

	type queueItem struct {
		id    string
		depth int
	}
	reached := map[string]bool{id: true}
	queue := []queueItem{{id, 0}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= depth {
			continue
		}
		for _, next := range adj[item.id] {
			if reached[next] {
				continue
			}
			reached[next] = true
			queue = append(queue, queueItem{next, item.depth + 1})
		}
	}

	out := Snapshot{Nodes: []Node{}, Edges: []Edge{}}
	for _, n := range s.Nodes {
		if reached[n.ID] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range s.Edges {
		if reached[e.From] && reached[e.To] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out, nil
}
