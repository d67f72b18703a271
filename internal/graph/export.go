package graph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// Record kinds used in the JSONL form.
const (
	KindNode = "node"
	KindEdge = "edge"
)

// record is one JSONL line.
type record struct {
	Kind string `json:"kind"`
	Node *Node  `json:"node,omitempty"`
	Edge *Edge  `json:"edge,omitempty"`
}

// WriteJSON writes the snapshot as one indented JSON document.
func WriteJSON(w io.Writer, s Snapshot) error {
	if s.Nodes == nil {
		s.Nodes = []Node{}
	}
	if s.Edges == nil {
		s.Edges = []Edge{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// WriteJSONL writes nodes then edges, one record per line.
func WriteJSONL(w io.Writer, s Snapshot) error {
	enc := json.NewEncoder(w)
	for i := range s.Nodes {
		if err := enc.Encode(record{Kind: KindNode, Node: &s.Nodes[i]}); err != nil {
			return fmt.Errorf("encoding node %s: %w", s.Nodes[i].ID, err)
		}
	}
	for i := range s.Edges {
		if err := enc.Encode(record{Kind: KindEdge, Edge: &s.Edges[i]}); err != nil {
			return fmt.Errorf("encoding edge %s: %w", s.Edges[i].Key(), err)
		}
	}
	return nil
}

// ReadJSONL reads a snapshot written by WriteJSONL.
func ReadJSONL(r io.Reader) (Snapshot, error) {
	var s Snapshot
	scanner := bufio.NewScanner(r)

	// Increase buffer size for long lines
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return Snapshot{}, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		switch {
		case rec.Kind == KindNode && rec.Node != nil:
			s.Nodes = append(s.Nodes, *rec.Node)
		case rec.Kind == KindEdge && rec.Edge != nil:
			s.Edges = append(s.Edges, *rec.Edge)
		default:
			return Snapshot{}, fmt.Errorf("line %d: unknown record kind %q", lineNum, rec.Kind)
		}
	}

	if err := scanner.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}
	return s, nil
}
