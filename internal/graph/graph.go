// Package graph holds the canonical in-memory relationship graph and the pure
// computations (filtering, degree, sizing, search) derived from it.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// FilterAll is the filter sentinel that keeps every node type.
const FilterAll = "all"

// ErrInvalidDepth is returned for neighborhood requests with depth < 1.
var ErrInvalidDepth = errors.New("depth must be at least 1")

// Snapshot is a point-in-time {nodes, edges} payload.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// IsEmpty returns true if the snapshot has no nodes.
func (s Snapshot) IsEmpty() bool {
	return len(s.Nodes) == 0
}

// Validate checks every node and edge of the snapshot.
func (s Snapshot) Validate() error {
	for i := range s.Nodes {
		if err := s.Nodes[i].Validate(); err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
	}
	for i := range s.Edges {
		if err := s.Edges[i].Validate(); err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
	}
	return nil
}

// Normalize lower-cases node types and defaults edge weights.
func Normalize(s Snapshot) Snapshot {
	out := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.normalize()
	}
	for i, e := range s.Edges {
		out.Edges[i] = e.normalize()
	}
	return out
}

// MergeStats reports what a merge changed.
type MergeStats struct {
	NodesAdded    int `json:"nodes_added"`
	NodesReplaced int `json:"nodes_replaced"`
	EdgesAdded    int `json:"edges_added"`
	EdgesSkipped  int `json:"edges_skipped"`
}

// Graph is the node/edge collection. Nodes are keyed by id (last write wins),
// edges by EdgeKey (first write wins). Both keep first-insertion order, which
// is the deterministic tie-break for every ordered output.
//
// Graph is safe for concurrent use.
type Graph struct {
	mu sync.RWMutex

	nodes     map[string]Node
	nodeOrder []string

	edges     map[EdgeKey]Edge
	edgeOrder []EdgeKey

	communities map[string]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		edges: make(map[EdgeKey]Edge),
	}
}

// Replace discards the current nodes and edges and loads the snapshot.
// Duplicate ids or edge keys inside the snapshot follow the merge rules.
// Community labels survive a replace.
func (g *Graph) Replace(s Snapshot) MergeStats {
	s = Normalize(s)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]Node, len(s.Nodes))
	g.nodeOrder = make([]string, 0, len(s.Nodes))
	g.edges = make(map[EdgeKey]Edge, len(s.Edges))
	g.edgeOrder = make([]EdgeKey, 0, len(s.Edges))

	return g.mergeLocked(s)
}

// Merge adds the snapshot to the graph. It never removes anything.
func (g *Graph) Merge(s Snapshot) MergeStats {
	s = Normalize(s)

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.mergeLocked(s)
}

func (g *Graph) mergeLocked(s Snapshot) MergeStats {
	var stats MergeStats

	for _, n := range s.Nodes {
		n = n.withCommunity(g.communities[n.ID])
		if _, ok := g.nodes[n.ID]; ok {
			stats.NodesReplaced++
		} else {
			g.nodeOrder = append(g.nodeOrder, n.ID)
			stats.NodesAdded++
		}
		g.nodes[n.ID] = n
	}

	for _, e := range s.Edges {
		key := e.Key()
		if _, ok := g.edges[key]; ok {
			stats.EdgesSkipped++
			continue
		}
		g.edges[key] = e
		g.edgeOrder = append(g.edgeOrder, key)
		stats.EdgesAdded++
	}

	return stats
}

// SetCommunities records community labels and attaches them to known nodes.
// Nodes that arrive later pick up their label on insertion.
func (g *Graph) SetCommunities(communities map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.communities = make(map[string]string, len(communities))
	for id, c := range communities {
		g.communities[id] = c
		if n, ok := g.nodes[id]; ok {
			g.nodes[id] = n.withCommunity(c)
		}
	}
}

// Snapshot returns the current nodes and edges in insertion order.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.snapshotLocked()
}

func (g *Graph) snapshotLocked() Snapshot {
	s := Snapshot{
		Nodes: make([]Node, 0, len(g.nodeOrder)),
		Edges: make([]Edge, 0, len(g.edgeOrder)),
	}
	for _, id := range g.nodeOrder {
		s.Nodes = append(s.Nodes, g.nodes[id])
	}
	for _, k := range g.edgeOrder {
		s.Edges = append(s.Edges, g.edges[k])
	}
	return s
}

// Len returns the number of nodes and edges.
func (g *Graph) Len() (nodes, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes), len(g.edges)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether the id is known locally.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Node(id)
	return ok
}

// Types returns the sorted distinct node types.
func (g *Graph) Types() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	var types []string
	for _, n := range g.nodes {
		if n.Type != "" && !seen[n.Type] {
			seen[n.Type] = true
			types = append(types, n.Type)
		}
	}
	slices.Sort(types)
	return types
}

// Visible returns the subgraph restricted to nodes of the given type. An edge
// is kept only when both endpoints are kept.
func (g *Graph) Visible(filterType string) Snapshot {
	return Visible(g.Snapshot(), filterType)
}

// TopDegree returns up to limit nodes of the whole graph ordered by descending
// degree; ties keep insertion order.
func (g *Graph) TopDegree(limit int) []NodeDegree {
	return TopDegree(g.Snapshot(), limit)
}

// ClosedNeighborhood returns the node, its adjacent nodes, and the edges
// incident to it.
func (g *Graph) ClosedNeighborhood(id string) (Snapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	members := map[string]bool{id: true}
	var out Snapshot
	for _, k := range g.edgeOrder {
		if k.From != id && k.To != id {
			continue
		}
		out.Edges = append(out.Edges, g.edges[k])
		members[k.From] = true
		members[k.To] = true
	}
	for _, nid := range g.nodeOrder {
		if members[nid] {
			out.Nodes = append(out.Nodes, g.nodes[nid])
		}
	}
	return out, nil
}
