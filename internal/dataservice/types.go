package dataservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/voltask/graphx/internal/graph"
)

// wireValidate checks decoded payloads before they reach the graph.
var wireValidate = validator.New()

// flexString accepts a JSON string or number. Graph databases commonly hand
// out integer identities, and the explorer treats every id as opaque text.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// wireNode is the service's node schema.
type wireNode struct {
	ID         flexString     `json:"id" validate:"required"`
	Label      string         `json:"label"`
	Type       string         `json:"type" validate:"required"`
	Properties map[string]any `json:"properties,omitempty"`
}

// wireEdge is the service's edge schema. Weight is a pointer so that an
// absent weight can be told apart from an explicit one. An explicit weight
// must be positive: zero means unset in the local graph.
type wireEdge struct {
	From   flexString `json:"from" validate:"required"`
	To     flexString `json:"to" validate:"required"`
	Type   string     `json:"type" validate:"required"`
	Weight *float64   `json:"weight,omitempty" validate:"omitempty,gt=0"`
}

// wireSnapshot is the payload of /graph and /neighborhood.
type wireSnapshot struct {
	Nodes []wireNode `json:"nodes" validate:"required,dive"`
	Edges []wireEdge `json:"edges" validate:"dive"`
}

// decodeSnapshot parses and validates a snapshot body.
func decodeSnapshot(body []byte) (graph.Snapshot, error) {
	var ws wireSnapshot
	if err := json.Unmarshal(body, &ws); err != nil {
		return graph.Snapshot{}, fmt.Errorf("%w: parsing snapshot: %v", ErrInvalidResponse, err)
	}
	if err := wireValidate.Struct(ws); err != nil {
		return graph.Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidResponse, describeValidation(err))
	}

	s := graph.Snapshot{
		Nodes: make([]graph.Node, len(ws.Nodes)),
		Edges: make([]graph.Edge, len(ws.Edges)),
	}
	for i, n := range ws.Nodes {
		s.Nodes[i] = graph.Node{
			ID:         string(n.ID),
			Label:      n.Label,
			Type:       strings.ToLower(n.Type),
			Properties: n.Properties,
		}
	}
	for i, e := range ws.Edges {
		weight := graph.DefaultWeight
		if e.Weight != nil {
			weight = *e.Weight
		}
		s.Edges[i] = graph.Edge{
			From:   string(e.From),
			To:     string(e.To),
			Type:   e.Type,
			Weight: weight,
		}
	}
	return s, nil
}

// decodeCommunities parses the /communities mapping.
func decodeCommunities(body []byte) (map[string]string, error) {
	var raw map[string]flexString
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing communities: %v", ErrInvalidResponse, err)
	}
	out := make(map[string]string, len(raw))
	for id, c := range raw {
		if id == "" {
			continue
		}
		out[id] = string(c)
	}
	return out, nil
}

// describeValidation renders validator errors as "field: tag" pairs.
func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	const maxLen = 200
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}
	return msg
}
