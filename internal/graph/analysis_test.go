package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func TestVisible_FilterConsistency(t *testing.T) {
	g := New()
	g.Replace(sampleSnapshot())

	for _, filter := range []string{FilterAll, "", "volunteer", "skill", "task", "VOLUNTEER"} {
		t.Run(filter, func(t *testing.T) {
			vis := g.Visible(filter)
			ids := make(map[string]bool)
			for _, n := range vis.Nodes {
				ids[n.ID] = true
			}
			for _, e := range vis.Edges {
				if !ids[e.From] || !ids[e.To] {
					t.Errorf("edge %s has endpoint outside visible nodes", e.Key())
				}
			}
		})
	}
}

func TestVisible_DropsEdgeToFilteredNode(t *testing.T) {
	s := Snapshot{
		Nodes: []Node{
			{ID: "a", Label: "Alice", Type: "volunteer"},
			{ID: "b", Label: "Bob", Type: "skill"},
		},
		Edges: []Edge{{From: "a", To: "b", Type: "has"}},
	}
	g := New()
	g.Replace(s)

	vis := g.Visible("volunteer")
	if len(vis.Nodes) != 1 || vis.Nodes[0].ID != "a" {
		t.Errorf("visible nodes = %+v, want [a]", vis.Nodes)
	}
	if len(vis.Edges) != 0 {
		t.Errorf("visible edges = %+v, want none", vis.Edges)
	}
}

func TestVisible_All(t *testing.T) {
	g := New()
	g.Replace(sampleSnapshot())

	vis := g.Visible(FilterAll)
	if len(vis.Nodes) != 3 || len(vis.Edges) != 3 {
		t.Errorf("got %d/%d, want 3/3", len(vis.Nodes), len(vis.Edges))
	}
}

func TestDegreeMap(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		edges []Edge
		want  map[string]int
	}{
		{
			name:  "single edge increments both endpoints",
			nodes: []Node{{ID: "a"}, {ID: "b"}},
			edges: []Edge{{From: "a", To: "b", Type: "t"}},
			want:  map[string]int{"a": 1, "b": 1},
		},
		{
			name:  "self loop counts twice",
			nodes: []Node{{ID: "a"}},
			edges: []Edge{{From: "a", To: "a", Type: "t"}},
			want:  map[string]int{"a": 2},
		},
		{
			name:  "isolated node maps to zero",
			nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			edges: []Edge{{From: "a", To: "b", Type: "t"}},
			want:  map[string]int{"a": 1, "b": 1, "c": 0},
		},
		{
			name:  "endpoints outside node list ignored",
			nodes: []Node{{ID: "a"}},
			edges: []Edge{{From: "a", To: "ghost", Type: "t"}},
			want:  map[string]int{"a": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DegreeMap(tt.nodes, tt.edges)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for id, d := range tt.want {
				if got[id] != d {
					t.Errorf("degree[%s] = %d, want %d", id, got[id], d)
				}
			}
		})
	}
}

func TestSizeScale_Monotonic(t *testing.T) {
	s := DefaultSizeScale()

	if got := s.Size(0); got != s.Min {
		t.Errorf("Size(0) = %v, want %v", got, s.Min)
	}

	prev := s.Size(0)
	for d := 0; d <= 10000; d++ {
		size := s.Size(d)
		if size < prev {
			t.Fatalf("Size(%d) = %v < Size(%d) = %v", d, size, d-1, prev)
		}
		if size < s.Min || size > s.Max {
			t.Fatalf("Size(%d) = %v outside [%v, %v]", d, size, s.Min, s.Max)
		}
		prev = size
	}

	if got := s.Size(1 << 30); got != s.Max {
		t.Errorf("hub size = %v, want capped at %v", got, s.Max)
	}
}

func TestSizeScale_Degenerate(t *testing.T) {
	s := SizeScale{Min: 40, Max: 20, Factor: 5}
	if got := s.Size(100); got != 40 {
		t.Errorf("Size with Max < Min = %v, want Min", got)
	}
}

func TestSearchMatches(t *testing.T) {
	nodes := sampleSnapshot().Nodes

	tests := []struct {
		term string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"al", []string{"a"}},
		{"AL", []string{"a"}},
		{"o", []string{"b", "c"}},
		{"zzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got := SearchMatches(nodes, tt.term)
			if !slices.Equal(got, tt.want) {
				t.Errorf("SearchMatches(%q) = %v, want %v", tt.term, got, tt.want)
			}
		})
	}
}

func TestTopDegree(t *testing.T) {
	s := Snapshot{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}},
		Edges: []Edge{
			{From: "a", To: "b", Type: "t"},
			{From: "a", To: "c", Type: "t"},
			{From: "a", To: "d", Type: "t"},
			{From: "b", To: "c", Type: "t"},
		},
	}

	got := TopDegree(s, 3)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Degree > got[i-1].Degree {
			t.Errorf("not sorted descending: %+v", got)
		}
	}
	// a=3, then b and c tie at 2 in insertion order.
	wantIDs := []string{"a", "b", "c"}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("entry %d = %s, want %s", i, got[i].ID, id)
		}
	}

	if got := TopDegree(s, 0); len(got) != 0 {
		t.Errorf("limit 0 returned %v", got)
	}
	if got := TopDegree(s, 100); len(got) != 5 {
		t.Errorf("large limit returned %d entries, want 5", len(got))
	}
}

func TestGraph_TopDegreeIgnoresFilter(t *testing.T) {
	g := New()
	g.Replace(sampleSnapshot())

	// b (skill) has degree 2 in the full graph even though a volunteer filter hides it.
	top := g.TopDegree(1)
	if len(top) != 1 {
		t.Fatalf("got %v", top)
	}
	if top[0].Degree != 2 {
		t.Errorf("top degree = %d, want 2", top[0].Degree)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleSnapshot()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded Snapshot
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Nodes) != 3 || len(decoded.Edges) != 3 {
		t.Errorf("decoded %d/%d, want 3/3", len(decoded.Nodes), len(decoded.Edges))
	}
}

func TestWriteJSON_EmptyUsesArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Snapshot{}); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"nodes\": [],\n  \"edges\": []\n}\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestJSONL_ReadBack(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, sampleSnapshot()); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}

	got, err := ReadJSONL(&buf)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(got.Nodes) != 3 || len(got.Edges) != 3 {
		t.Errorf("read %d/%d, want 3/3", len(got.Nodes), len(got.Edges))
	}
}

func TestReadJSONL_UnknownKind(t *testing.T) {
	_, err := ReadJSONL(bytes.NewBufferString(`{"kind":"mystery"}` + "\n"))
	if err == nil {
		t.Error("expected error for unknown record kind")
	}
}

func TestNeighborhood_Depth(t *testing.T) {
	chain := Snapshot{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Edges: []Edge{
			{From: "a", To: "b", Type: "x"},
			{From: "c", To: "b", Type: "x"},
			{From: "c", To: "d", Type: "x"},
		},
	}

	tests := []struct {
		name      string
		id        string
		depth     int
		wantNodes []string
		wantEdges int
	}{
		{"one hop", "a", 1, []string{"a", "b"}, 1},
		{"two hops follows reverse edges", "a", 2, []string{"a", "b", "c"}, 2},
		{"whole chain", "a", 5, []string{"a", "b", "c", "d"}, 3},
		{"from middle", "c", 1, []string{"b", "c", "d"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Neighborhood(chain, tt.id, tt.depth)
			if err != nil {
				t.Fatalf("Neighborhood: %v", err)
			}
			var ids []string
			for _, n := range got.Nodes {
				ids = append(ids, n.ID)
			}
			if !slices.Equal(ids, tt.wantNodes) {
				t.Errorf("nodes = %v, want %v", ids, tt.wantNodes)
			}
			if len(got.Edges) != tt.wantEdges {
				t.Errorf("edges = %d, want %d", len(got.Edges), tt.wantEdges)
			}
		})
	}
}

func TestNeighborhood_Errors(t *testing.T) {
	if _, err := Neighborhood(sampleSnapshot(), "a", 0); !errors.Is(err, ErrInvalidDepth) {
		t.Errorf("depth 0: err = %v, want ErrInvalidDepth", err)
	}
	if _, err := Neighborhood(sampleSnapshot(), "zz", 1); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNodeNotFound", err)
	}
}
