package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltask/graphx/internal/graph"
	"github.com/voltask/graphx/internal/session"
	"github.com/voltask/graphx/internal/viz"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	graph         graph.Snapshot
	graphErr      error
	neighborhoods map[string]graph.Snapshot
}

func (f *fakeService) FetchGraph(context.Context) (graph.Snapshot, error) {
	return f.graph, f.graphErr
}

func (f *fakeService) FetchNeighborhood(_ context.Context, id string, _ int) (graph.Snapshot, error) {
	return f.neighborhoods[id], nil
}

func (f *fakeService) FetchCommunities(context.Context) (map[string]string, error) {
	return nil, nil
}

func testGraph() graph.Snapshot {
	return graph.Snapshot{
		Nodes: []graph.Node{
			{ID: "v1", Label: "Ana", Type: "volunteer"},
			{ID: "v2", Label: "Ben", Type: "volunteer"},
			{ID: "s1", Label: "First aid", Type: "skill"},
		},
		Edges: []graph.Edge{
			{From: "v1", To: "s1", Type: "HAS_SKILL", Weight: 1},
			{From: "v2", To: "s1", Type: "HAS_SKILL", Weight: 1},
		},
	}
}

// setupTestRouter returns a router over a loaded session.
func setupTestRouter(t *testing.T, ds *fakeService) (*gin.Engine, *session.Manager) {
	t.Helper()

	reg := prometheus.NewRegistry()
	mgr := session.New(ds, session.WithMetrics(session.NewMetrics(reg)))
	t.Cleanup(mgr.Close)

	if ds.graphErr == nil {
		_, err := mgr.LoadFullGraph(context.Background())
		require.NoError(t, err)
	}

	h := NewHandlers(mgr, viz.DefaultOptions(), nil)
	return NewRouter(h, reg, nil), mgr
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandleIndex(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	w := doRequest(r, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "cytoscape")
	assert.Contains(t, w.Body.String(), "/api/expand")
}

func TestHandleHealth(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	w := doRequest(r, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Nodes)
	assert.Equal(t, 2, resp.Edges)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestHandleLoad_FetchFailure(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graphErr: errors.New("connection refused")})

	w := doRequest(r, http.MethodPost, "/api/load", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "FETCH_FAILED", decode[ErrorResponse](t, w).Code)
}

func TestHandleLoad(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	w := doRequest(r, http.MethodPost, "/api/load", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[MergeResponse](t, w)
	assert.Equal(t, 3, resp.Nodes)
	assert.Equal(t, 2, resp.Edges)
}

func TestHandleExpand(t *testing.T) {
	ds := &fakeService{
		graph: testGraph(),
		neighborhoods: map[string]graph.Snapshot{
			"s1": {
				Nodes: []graph.Node{{ID: "t1", Label: "Clinic", Type: "task"}},
				Edges: []graph.Edge{{From: "t1", To: "s1", Type: "REQUIRES", Weight: 1}},
			},
		},
	}
	r, mgr := setupTestRouter(t, ds)

	w := doRequest(r, http.MethodPost, "/api/expand", ExpandRequest{ID: "s1"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[MergeResponse](t, w)
	assert.Equal(t, 1, resp.Stats.NodesAdded)
	assert.Equal(t, 1, resp.Stats.EdgesAdded)
	assert.True(t, mgr.Snapshot().Nodes[3].ID == "t1")
}

func TestHandleExpand_Errors(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"missing id", map[string]any{"depth": 1}, http.StatusBadRequest},
		{"negative depth", map[string]any{"id": "v1", "depth": -2}, http.StatusBadRequest},
		{"unknown node", ExpandRequest{ID: "nope", Depth: 1}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/expand", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestHandleElements(t *testing.T) {
	r, mgr := setupTestRouter(t, &fakeService{graph: testGraph()})

	w := doRequest(r, http.MethodGet, "/api/elements?filter=volunteer", nil)

	require.Equal(t, http.StatusOK, w.Code)
	els := decode[viz.Elements](t, w)
	assert.Len(t, els.Nodes, 2)
	assert.Empty(t, els.Edges)

	// Query overrides must not change the stored view.
	assert.Equal(t, graph.FilterAll, mgr.View().Filter)
}

func TestHandleSearch(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	w := doRequest(r, http.MethodGet, "/api/search?q=an", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"v1"}, decode[SearchResponse](t, w).Matches)

	w = doRequest(r, http.MethodGet, "/api/search", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{}, decode[SearchResponse](t, w).Matches)
}

func TestHandleTop(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	w := doRequest(r, http.MethodGet, "/api/top?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	top := decode[[]graph.NodeDegree](t, w)
	require.Len(t, top, 1)
	assert.Equal(t, "s1", top[0].ID)

	w = doRequest(r, http.MethodGet, "/api/top?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleExport(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	w := doRequest(r, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "graph.json")
	doc := decode[graph.Snapshot](t, w)
	assert.Len(t, doc.Nodes, 3)

	w = doRequest(r, http.MethodGet, "/api/export?format=jsonl", nil)
	require.Equal(t, http.StatusOK, w.Code)
	back, err := graph.ReadJSONL(strings.NewReader(w.Body.String()))
	require.NoError(t, err)
	assert.Len(t, back.Edges, 2)

	w = doRequest(r, http.MethodGet, "/api/export?format=png", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleView(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	layout, filter := "grid", "Skill"
	w := doRequest(r, http.MethodPut, "/api/view", ViewRequest{Layout: &layout, Filter: &filter})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[session.View](t, w)
	assert.Equal(t, "grid", view.Layout)
	assert.Equal(t, "skill", view.Filter)

	bad := "spiral"
	w = doRequest(r, http.MethodPut, "/api/view", ViewRequest{Layout: &bad})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_LAYOUT", decode[ErrorResponse](t, w).Code)
}

func TestHandleSelect(t *testing.T) {
	r, mgr := setupTestRouter(t, &fakeService{graph: testGraph()})

	w := doRequest(r, http.MethodPost, "/api/select/s1", SelectRequest{X: 10, Y: 20})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[SelectResponse](t, w)
	assert.NotEmpty(t, resp.OverlayID)
	assert.Equal(t, "s1", resp.Node.ID)
	assert.True(t, resp.Placed)
	assert.Equal(t, 10.0, resp.Position.X)
	assert.Len(t, resp.Context.Nodes, 3)
	assert.Len(t, resp.Context.Edges, 2)
	assert.Equal(t, "s1", mgr.View().ActiveNode)

	w = doRequest(r, http.MethodPost, "/api/select/v1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	h, ok := mgr.ActiveOverlay()
	require.True(t, ok)
	assert.Equal(t, "v1", h.Anchor.NodeID)

	w = doRequest(r, http.MethodDelete, "/api/select", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok = mgr.ActiveOverlay()
	assert.False(t, ok)

	w = doRequest(r, http.MethodPost, "/api/select/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSelect_ChunkedBody(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	// No Content-Length: the body arrives chunked.
	body := io.MultiReader(strings.NewReader(`{"x": 42, "y": 7}`))
	req := httptest.NewRequest(http.MethodPost, "/api/select/v2", body)
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, int64(-1), req.ContentLength)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[SelectResponse](t, w)
	assert.Equal(t, 42.0, resp.Position.X)
	assert.Equal(t, 7.0, resp.Position.Y)
}

func TestHandleSelect_MalformedBody(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	req := httptest.NewRequest(http.MethodPost, "/api/select/v1", strings.NewReader(`{"x": `))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setupTestRouter(t, &fakeService{graph: testGraph()})

	w := doRequest(r, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gx_graph_nodes")
}
