// Package server hosts the explorer page and a JSON API over a graph session.
package server

import (
	"github.com/voltask/graphx/internal/graph"
	"github.com/voltask/graphx/internal/overlay"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ExpandRequest is the body of POST /api/expand.
type ExpandRequest struct {
	ID    string `json:"id" binding:"required"`
	Depth int    `json:"depth" binding:"omitempty,min=1"`
}

// MergeResponse reports a load or expansion.
type MergeResponse struct {
	Stats graph.MergeStats `json:"stats"`
	Nodes int              `json:"nodes"`
	Edges int              `json:"edges"`
}

// ViewRequest is the body of PUT /api/view. Absent fields are left unchanged.
type ViewRequest struct {
	Filter *string `json:"filter"`
	Layout *string `json:"layout"`
	Search *string `json:"search"`
}

// SelectRequest carries the on-screen anchor of a tapped node.
type SelectRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SelectResponse describes the overlay acquired for a selection.
type SelectResponse struct {
	OverlayID string           `json:"overlay_id"`
	Node      graph.Node       `json:"node"`
	Position  overlay.Position `json:"position"`
	Placed    bool             `json:"placed"`
	Context   graph.Snapshot   `json:"context"`
}

// SearchResponse lists matching node ids.
type SearchResponse struct {
	Query   string   `json:"query"`
	Matches []string `json:"matches"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
}
