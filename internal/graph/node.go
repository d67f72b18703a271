package graph

import (
	"errors"
	"maps"
	"strings"
)

// PropCommunity is the property key under which community labels are attached.
const PropCommunity = "community"

// Node represents a vertex of the relationship graph.
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       string         `json:"type"` // category tag, always lower-case once ingested
	Properties map[string]any `json:"properties,omitempty"`
}

// Validation errors.
var (
	ErrEmptyID      = errors.New("node id is required")
	ErrNodeNotFound = errors.New("node not found")
)

// Validate checks that the node carries an identity.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// Community returns the community label attached to the node, if any.
func (n *Node) Community() string {
	if n.Properties == nil {
		return ""
	}
	s, _ := n.Properties[PropCommunity].(string)
	return s
}

// normalize lower-cases the type and copies the property map so that the
// graph never aliases caller-owned maps.
func (n Node) normalize() Node {
	n.Type = strings.ToLower(n.Type)
	if n.Properties != nil {
		n.Properties = maps.Clone(n.Properties)
	}
	return n
}

// withCommunity returns a copy of n carrying the given community label.
func (n Node) withCommunity(community string) Node {
	if community == "" || n.Community() == community {
		return n
	}
	props := make(map[string]any, len(n.Properties)+1)
	maps.Copy(props, n.Properties)
	props[PropCommunity] = community
	n.Properties = props
	return n
}
