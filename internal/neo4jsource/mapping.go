package neo4jsource

import (
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/voltask/graphx/internal/graph"
)

// Property keys read from Neo4j nodes and relationships.
const (
	propID     = "id"
	propWeight = "weight"
)

// labelProps are tried in order for a node's display label.
var labelProps = []string{"name", "label", "title"}

// snapshotFromRecords flattens record values (nodes, relationships, and lists
// of either) into a snapshot. Nodes and relationships are de-duplicated by
// element id; relationship endpoints are translated to node ids.
func snapshotFromRecords(records []*neo4j.Record) graph.Snapshot {
	var nodes []neo4j.Node
	var rels []neo4j.Relationship
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, v := range rec.Values {
			collect(v, &nodes, &rels)
		}
	}

	out := graph.Snapshot{Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	idOf := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if _, seen := idOf[n.ElementId]; seen {
			continue
		}
		gn := nodeFromNeo4j(n)
		idOf[n.ElementId] = gn.ID
		out.Nodes = append(out.Nodes, gn)
	}

	seenRels := make(map[string]bool, len(rels))
	for _, r := range rels {
		if seenRels[r.ElementId] {
			continue
		}
		seenRels[r.ElementId] = true
		out.Edges = append(out.Edges, edgeFromNeo4j(r, idOf))
	}
	return out
}

func collect(v any, nodes *[]neo4j.Node, rels *[]neo4j.Relationship) {
	switch val := v.(type) {
	case neo4j.Node:
		*nodes = append(*nodes, val)
	case neo4j.Relationship:
		*rels = append(*rels, val)
	case neo4j.Path:
		*nodes = append(*nodes, val.Nodes...)
		*rels = append(*rels, val.Relationships...)
	case []any:
		for _, item := range val {
			collect(item, nodes, rels)
		}
	}
}

// nodeFromNeo4j maps a Neo4j node. The id property wins over the element id;
// the first label is the type.
func nodeFromNeo4j(n neo4j.Node) graph.Node {
	gn := graph.Node{ID: n.ElementId}
	if id, ok := n.Props[propID]; ok && id != nil {
		gn.ID = fmt.Sprint(id)
	}
	if len(n.Labels) > 0 {
		gn.Type = strings.ToLower(n.Labels[0])
	}
	for _, key := range labelProps {
		if s, ok := n.Props[key].(string); ok && s != "" {
			gn.Label = s
			break
		}
	}
	if gn.Label == "" {
		gn.Label = gn.ID
	}

	props := make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		if k == propID {
			continue
		}
		props[k] = v
	}
	if len(props) > 0 {
		gn.Properties = props
	}
	return gn
}

func edgeFromNeo4j(r neo4j.Relationship, idOf map[string]string) graph.Edge {
	e := graph.Edge{
		From:   r.StartElementId,
		To:     r.EndElementId,
		Type:   r.Type,
		Weight: graph.DefaultWeight,
	}
	if id, ok := idOf[r.StartElementId]; ok {
		e.From = id
	}
	if id, ok := idOf[r.EndElementId]; ok {
		e.To = id
	}
	switch w := r.Props[propWeight].(type) {
	case float64:
		e.Weight = w
	case int64:
		e.Weight = float64(w)
	}
	return e
}

func communitiesFromRecords(records []*neo4j.Record) map[string]string {
	out := make(map[string]string, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		id, _ := recordString(rec, "id")
		community, _ := recordString(rec, "community")
		if id != "" && community != "" {
			out[id] = community
		}
	}
	return out
}

func recordString(rec *neo4j.Record, key string) (string, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
