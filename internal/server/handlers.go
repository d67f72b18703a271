package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voltask/graphx/internal/graph"
	"github.com/voltask/graphx/internal/overlay"
	"github.com/voltask/graphx/internal/session"
	"github.com/voltask/graphx/internal/viz"
)

// DefaultTopLimit is used by /api/top without a limit.
const DefaultTopLimit = 10

// Handlers serves HTTP requests against one session.
type Handlers struct {
	mgr    *session.Manager
	page   viz.HTMLOptions
	logger *slog.Logger
}

// NewHandlers creates handlers for mgr. page configures the explorer page.
func NewHandlers(mgr *session.Manager, page viz.HTMLOptions, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	page.Live = true
	page.Layouts = mgr.Layouts()
	return &Handlers{mgr: mgr, page: page, logger: logger}
}

func abort(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// statusFor maps session and graph errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, graph.ErrNodeNotFound):
		return http.StatusNotFound, "NODE_NOT_FOUND"
	case errors.Is(err, graph.ErrInvalidDepth):
		return http.StatusBadRequest, "INVALID_DEPTH"
	case session.IsFetchFailure(err):
		return http.StatusBadGateway, "FETCH_FAILED"
	case session.IsRenderFailure(err):
		return http.StatusInternalServerError, "RENDER_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// HandleIndex serves the live explorer page for the current view.
func (h *Handlers) HandleIndex(c *gin.Context) {
	view := h.mgr.View()
	els := h.mgr.Elements()

	opts := h.page
	opts.Layout = view.Layout
	opts.Filter = view.Filter
	opts.FilterOptions = h.mgr.Types()
	opts.Search = view.Search

	page, err := viz.GenerateHTML(&els, opts)
	if err != nil {
		h.logger.Error("generating page", "err", err)
		abort(c, http.StatusInternalServerError, "RENDER_FAILED", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// HandleLoad handles POST /api/load.
func (h *Handlers) HandleLoad(c *gin.Context) {
	stats, err := h.mgr.LoadFullGraph(c.Request.Context())
	if err != nil {
		status, code := statusFor(err)
		abort(c, status, code, err)
		return
	}
	h.mergeResponse(c, stats)
}

// HandleExpand handles POST /api/expand.
func (h *Handlers) HandleExpand(c *gin.Context) {
	var req ExpandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if req.Depth == 0 {
		req.Depth = 1
	}

	stats, err := h.mgr.ExpandNeighborhood(c.Request.Context(), req.ID, req.Depth)
	if err != nil {
		status, code := statusFor(err)
		abort(c, status, code, err)
		return
	}
	h.mergeResponse(c, stats)
}

func (h *Handlers) mergeResponse(c *gin.Context, stats graph.MergeStats) {
	snap := h.mgr.Snapshot()
	c.JSON(http.StatusOK, MergeResponse{Stats: stats, Nodes: len(snap.Nodes), Edges: len(snap.Edges)})
}

// HandleElements handles GET /api/elements. Query parameters override the
// view state for this response only.
func (h *Handlers) HandleElements(c *gin.Context) {
	view := h.mgr.View()
	filter := c.DefaultQuery("filter", view.Filter)
	search := c.DefaultQuery("q", view.Search)
	c.JSON(http.StatusOK, h.mgr.ElementsFor(filter, search))
}

// HandleSearch handles GET /api/search.
func (h *Handlers) HandleSearch(c *gin.Context) {
	q := c.Query("q")
	matches := h.mgr.SearchMatches(q)
	if matches == nil {
		matches = []string{}
	}
	c.JSON(http.StatusOK, SearchResponse{Query: q, Matches: matches})
}

// HandleTop handles GET /api/top.
func (h *Handlers) HandleTop(c *gin.Context) {
	limit := DefaultTopLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abort(c, http.StatusBadRequest, "INVALID_LIMIT", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, h.mgr.TopDegreeNodes(limit))
}

// HandleExport handles GET /api/export.
func (h *Handlers) HandleExport(c *gin.Context) {
	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		c.Header("Content-Disposition", `attachment; filename="graph.json"`)
		c.Header("Content-Type", "application/json")
		c.Status(http.StatusOK)
		if err := h.mgr.ExportSnapshot(c.Writer); err != nil {
			h.logger.Error("exporting snapshot", "err", err)
		}
	case "jsonl":
		c.Header("Content-Disposition", `attachment; filename="graph.jsonl"`)
		c.Header("Content-Type", "application/x-ndjson")
		c.Status(http.StatusOK)
		if err := graph.WriteJSONL(c.Writer, h.mgr.Snapshot()); err != nil {
			h.logger.Error("exporting snapshot", "err", err)
		}
	default:
		abort(c, http.StatusBadRequest, "INVALID_FORMAT", errors.New("format must be json or jsonl"))
	}
}

// HandleGetView handles GET /api/view.
func (h *Handlers) HandleGetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.mgr.View())
}

// HandlePutView handles PUT /api/view.
func (h *Handlers) HandlePutView(c *gin.Context) {
	var req ViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	if req.Layout != nil {
		if err := h.mgr.SetLayout(*req.Layout); err != nil {
			abort(c, http.StatusBadRequest, "INVALID_LAYOUT", err)
			return
		}
	}
	if req.Filter != nil {
		h.mgr.SetFilter(*req.Filter)
	}
	if req.Search != nil {
		h.mgr.SetSearch(*req.Search)
	}
	c.JSON(http.StatusOK, h.mgr.View())
}

// HandleSelect handles POST /api/select/:id.
func (h *Handlers) HandleSelect(c *gin.Context) {
	id := c.Param("id")

	var req SelectRequest
	// The anchor is optional; an empty body selects at the origin.
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			abort(c, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
	}

	// The overlay outlives this request.
	ctx := context.WithoutCancel(c.Request.Context())
	handle, err := h.mgr.SelectNode(ctx, overlay.Anchor{NodeID: id, X: req.X, Y: req.Y})
	if err != nil {
		status, code := statusFor(err)
		if errors.Is(err, overlay.ErrPositionFailed) {
			status, code = http.StatusConflict, "OVERLAY_FAILED"
		}
		abort(c, status, code, err)
		return
	}

	node, _ := h.mgr.Node(id)
	ctxGraph, _ := h.mgr.NodeContext(id)
	pos, placed := handle.Position()
	c.JSON(http.StatusOK, SelectResponse{
		OverlayID: handle.ID,
		Node:      node,
		Position:  pos,
		Placed:    placed,
		Context:   ctxGraph,
	})
}

// HandleDeselect handles DELETE /api/select.
func (h *Handlers) HandleDeselect(c *gin.Context) {
	h.mgr.Deselect()
	c.Status(http.StatusNoContent)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	snap := h.mgr.Snapshot()
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Nodes: len(snap.Nodes), Edges: len(snap.Edges)})
}
