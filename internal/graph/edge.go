package graph

import "errors"

// DefaultWeight is applied to edges whose payload omits a weight.
const DefaultWeight = 1.0

// Edge represents a directed, typed relationship between two nodes.
type Edge struct {
	// Identity: (From, To, Type) tuple
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`

	Weight float64 `json:"weight"`
}

// Validation errors.
var (
	ErrEmptyEndpoint = errors.New("edge from and to are required")
	ErrEmptyEdgeType = errors.New("edge type is required")
)

// Validate checks that the identity fields are present.
func (e *Edge) Validate() error {
	if e.From == "" || e.To == "" {
		return ErrEmptyEndpoint
	}
	if e.Type == "" {
		return ErrEmptyEdgeType
	}
	return nil
}

// Key returns the unique identity tuple for this edge.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{
		From: e.From,
		To:   e.To,
		Type: e.Type,
	}
}

// EdgeKey represents the unique identity of an edge. It is comparable and is
// used directly as a map key, so no delimiter is involved in deduplication.
type EdgeKey struct {
	From string
	To   string
	Type string
}

// String returns the "from|to|type" form used as the rendered element id.
func (k EdgeKey) String() string {
	return k.From + "|" + k.To + "|" + k.Type
}

// normalize applies the default weight. Zero is treated as absent, matching
// the data service which never sends a meaningful zero weight.
func (e Edge) normalize() Edge {
	if e.Weight <= 0 {
		e.Weight = DefaultWeight
	}
	return e
}
