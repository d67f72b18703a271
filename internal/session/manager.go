// Package session implements the graph session manager: it owns the local
// graph and the view state (filter, layout, search, selection), merges data
// fetched from a data service, and hands style-annotated elements to a
// renderer.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/voltask/graphx/internal/graph"
	"github.com/voltask/graphx/internal/overlay"
	"github.com/voltask/graphx/internal/viz"
)

var tracer = otel.Tracer("graphx/session")

// Preference keys.
const (
	PrefLayout = "layoutName"
	PrefFilter = "filterType"
)

// DefaultFetchTimeout bounds a shared neighborhood fetch.
const DefaultFetchTimeout = 2 * time.Minute

// DefaultSnapshotName is the cache slot written after every load and expansion.
const DefaultSnapshotName = "last"

// DataService is the remote source of graph snapshots.
type DataService interface {
	FetchGraph(ctx context.Context) (graph.Snapshot, error)
	FetchNeighborhood(ctx context.Context, id string, depth int) (graph.Snapshot, error)
	FetchCommunities(ctx context.Context) (map[string]string, error)
}

// PreferenceStore persists view choices across sessions.
type PreferenceStore interface {
	GetPreference(key string) (string, bool, error)
	SetPreference(key, value string) error
}

// SnapshotCache keeps a copy of the local graph for offline use.
type SnapshotCache interface {
	SaveSnapshot(name string, s graph.Snapshot) error
}

// Renderer draws elements with a named layout and exports bitmaps.
type Renderer interface {
	Render(ctx context.Context, els viz.Elements, layout string) error
	ExportImage(ctx context.Context, w io.Writer) error
}

// View is the current view state.
type View struct {
	Filter     string `json:"filterType"`
	Layout     string `json:"layoutName"`
	Search     string `json:"searchTerm"`
	ActiveNode string `json:"activeNode,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithRenderer sets the renderer used by Render and ExportRenderedImage.
func WithRenderer(r Renderer) Option {
	return func(m *Manager) {
		m.renderer = r
	}
}

// WithPositioner sets the tooltip positioning engine.
func WithPositioner(p overlay.Positioner) Option {
	return func(m *Manager) {
		m.positioner = p
	}
}

// WithPreferences sets the preference store. Stored layout and filter are
// restored by New.
func WithPreferences(p PreferenceStore) Option {
	return func(m *Manager) {
		m.prefs = p
	}
}

// WithSnapshotCache saves the local graph after every successful fetch.
func WithSnapshotCache(c SnapshotCache) Option {
	return func(m *Manager) {
		m.cache = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithStyle sets node sizing and colouring.
func WithStyle(s viz.Style) Option {
	return func(m *Manager) {
		m.style = s
	}
}

// WithFetchTimeout bounds each neighborhood fetch. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.fetchTimeout = d
	}
}

// WithLayouts replaces the layout enumeration.
func WithLayouts(l viz.Layouts) Option {
	return func(m *Manager) {
		m.layouts = l
	}
}

// Manager is the graph session manager. It is safe for concurrent use.
type Manager struct {
	ds         DataService
	graph      *graph.Graph
	renderer   Renderer
	positioner overlay.Positioner
	overlays   *overlay.Registry
	prefs      PreferenceStore
	cache      SnapshotCache
	logger     *slog.Logger
	metrics    *Metrics
	style      viz.Style
	layouts    viz.Layouts
	flight     singleflight.Group

	fetchTimeout time.Duration

	mu     sync.Mutex
	view   View
	active *overlay.Handle
}

// New creates a manager that fetches from ds.
func New(ds DataService, opts ...Option) *Manager {
	m := &Manager{
		ds:      ds,
		graph:   graph.New(),
		logger:  slog.Default(),
		style:   viz.Style{Scale: graph.DefaultSizeScale()},
		layouts: viz.DefaultLayouts(),
		view:    View{Filter: graph.FilterAll, Layout: viz.DefaultLayout},

		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.overlays = overlay.NewRegistry(m.positioner,
		overlay.WithLogger(m.logger),
		overlay.WithActiveHook(m.metrics.setActiveOverlays),
	)
	m.restorePreferences()
	return m
}

func (m *Manager) restorePreferences() {
	if m.prefs == nil {
		return
	}
	if layout, ok, err := m.prefs.GetPreference(PrefLayout); err != nil {
		m.logger.Warn("reading layout preference", "err", err)
	} else if ok {
		if err := m.layouts.Validate(layout); err != nil {
			m.logger.Warn("ignoring stored layout", "layout", layout, "err", err)
		} else if layout != "" {
			m.view.Layout = layout
		}
	}
	if filter, ok, err := m.prefs.GetPreference(PrefFilter); err != nil {
		m.logger.Warn("reading filter preference", "err", err)
	} else if ok {
		m.view.Filter = normalizeFilter(filter)
	}
}

// LoadFullGraph fetches the whole graph and replaces the local collections.
// Community labels are fetched concurrently; their failure is logged and does
// not fail the load. On a graph fetch failure local state is untouched.
func (m *Manager) LoadFullGraph(ctx context.Context) (graph.MergeStats, error) {
	ctx, span := tracer.Start(ctx, "session.LoadFullGraph")
	defer span.End()

	var (
		snap        graph.Snapshot
		communities map[string]string
		commErr     error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var err error
		snap, err = m.ds.FetchGraph(gctx)
		m.metrics.observeFetch("graph", time.Since(start).Seconds(), err)
		return err
	})
	g.Go(func() error {
		start := time.Now()
		communities, commErr = m.ds.FetchCommunities(gctx)
		m.metrics.observeFetch("communities", time.Since(start).Seconds(), commErr)
		return nil // communities are optional
	})

	err := g.Wait()
	if err == nil {
		err = snap.Validate()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		m.logger.Error("loading graph", "err", err)
		return graph.MergeStats{}, &FetchError{Op: "load", Err: err}
	}

	if commErr != nil {
		m.logger.Warn("fetching communities", "err", commErr)
	} else {
		m.graph.SetCommunities(communities)
	}

	stats := m.graph.Replace(snap)
	m.afterFetch(stats)

	nodes, edges := m.graph.Len()
	span.SetAttributes(attribute.Int("graph.nodes", nodes), attribute.Int("graph.edges", edges))
	m.logger.Info("graph loaded", "nodes", nodes, "edges", edges, "communities", len(communities))
	return stats, nil
}

// ExpandNeighborhood fetches the neighborhood of a locally known node and
// merges it. Identical concurrent requests share one fetch, which runs to
// completion even if the caller that started it gives up. The graph only
// grows; on failure it is unchanged.
func (m *Manager) ExpandNeighborhood(ctx context.Context, id string, depth int) (graph.MergeStats, error) {
	if depth < 1 {
		return graph.MergeStats{}, graph.ErrInvalidDepth
	}
	if !m.graph.HasNode(id) {
		return graph.MergeStats{}, fmt.Errorf("expanding %s: %w", id, graph.ErrNodeNotFound)
	}

	ctx, span := tracer.Start(ctx, "session.ExpandNeighborhood")
	defer span.End()
	span.SetAttributes(attribute.String("node.id", id), attribute.Int("depth", depth))

	key := fmt.Sprintf("%s\x00%d", id, depth)
	ch := m.flight.DoChan(key, func() (any, error) {
		// Shared by every caller of this key, so no single caller's
		// cancellation may abort it.
		fctx := context.WithoutCancel(ctx)
		if m.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, m.fetchTimeout)
			defer cancel()
		}

		start := time.Now()
		snap, err := m.ds.FetchNeighborhood(fctx, id, depth)
		m.metrics.observeFetch("neighborhood", time.Since(start).Seconds(), err)
		if err == nil {
			err = snap.Validate()
		}
		if err != nil {
			return graph.MergeStats{}, err
		}
		stats := m.graph.Merge(snap)
		m.afterFetch(stats)
		return stats, nil
	})

	var (
		v      any
		err    error
		shared bool
	)
	select {
	case res := <-ch:
		v, err, shared = res.Val, res.Err, res.Shared
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expand failed")
		m.logger.Error("expanding neighborhood", "node_id", id, "depth", depth, "err", err)
		return graph.MergeStats{}, &FetchError{Op: "expand", NodeID: id, Err: err}
	}

	stats := v.(graph.MergeStats)
	m.logger.Debug("neighborhood merged", "node_id", id, "depth", depth, "shared", shared,
		"nodes_added", stats.NodesAdded, "edges_added", stats.EdgesAdded, "edges_skipped", stats.EdgesSkipped)
	return stats, nil
}

func (m *Manager) afterFetch(stats graph.MergeStats) {
	nodes, edges := m.graph.Len()
	m.metrics.setSize(nodes, edges)
	m.metrics.skippedEdges(stats.EdgesSkipped)

	if m.cache == nil {
		return
	}
	if err := m.cache.SaveSnapshot(DefaultSnapshotName, m.graph.Snapshot()); err != nil {
		m.logger.Warn("caching snapshot", "err", err)
	}
}

// Snapshot returns the full local graph.
func (m *Manager) Snapshot() graph.Snapshot {
	return m.graph.Snapshot()
}

// Node returns a locally known node.
func (m *Manager) Node(id string) (graph.Node, bool) {
	return m.graph.Node(id)
}

// NodeContext returns the node, its neighbors, and its incident edges.
func (m *Manager) NodeContext(id string) (graph.Snapshot, error) {
	return m.graph.ClosedNeighborhood(id)
}

// Types returns the node types present, for filter choices.
func (m *Manager) Types() []string {
	return m.graph.Types()
}

// Layouts returns the layout enumeration.
func (m *Manager) Layouts() viz.Layouts {
	return m.layouts
}

// VisibleSubgraph restricts the local graph to filterType.
func (m *Manager) VisibleSubgraph(filterType string) graph.Snapshot {
	return m.graph.Visible(normalizeFilter(filterType))
}

// DegreeMap counts each edge once per endpoint.
func (m *Manager) DegreeMap(nodes []graph.Node, edges []graph.Edge) map[string]int {
	return graph.DegreeMap(nodes, edges)
}

// VisualSize maps a degree to a node size.
func (m *Manager) VisualSize(degree int) float64 {
	return m.style.Scale.Size(degree)
}

// SearchMatches returns the ids of visible nodes whose label contains term.
func (m *Manager) SearchMatches(term string) []string {
	visible := m.graph.Visible(m.View().Filter)
	return graph.SearchMatches(visible.Nodes, term)
}

// TopDegreeNodes returns the limit highest-degree nodes of the whole graph.
func (m *Manager) TopDegreeNodes(limit int) []graph.NodeDegree {
	return m.graph.TopDegree(limit)
}

// Elements builds the renderer payload for the current view.
func (m *Manager) Elements() viz.Elements {
	view := m.View()
	return m.ElementsFor(view.Filter, view.Search)
}

// ElementsFor builds the renderer payload for an explicit filter and search
// term without touching the view state.
func (m *Manager) ElementsFor(filterType, search string) viz.Elements {
	visible := m.graph.Visible(normalizeFilter(filterType))
	matches := graph.SearchMatches(visible.Nodes, search)
	return viz.BuildElements(visible, m.style, matches)
}

// Render hands the current view to the renderer. Renderer errors and panics
// come back as *RenderError.
func (m *Manager) Render(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.Render")
	defer span.End()

	els := m.Elements()
	layout := m.View().Layout
	err := m.guardRender("render", func(r Renderer) error {
		return r.Render(ctx, els, layout)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
	}
	return err
}

// ExportSnapshot writes the full local graph as JSON.
func (m *Manager) ExportSnapshot(w io.Writer) error {
	return graph.WriteJSON(w, m.graph.Snapshot())
}

// ExportRenderedImage delegates bitmap export to the renderer.
func (m *Manager) ExportRenderedImage(ctx context.Context, w io.Writer) error {
	return m.guardRender("export image", func(r Renderer) error {
		return r.ExportImage(ctx, w)
	})
}

func (m *Manager) guardRender(op string, fn func(Renderer) error) (err error) {
	if m.renderer == nil {
		return &RenderError{Op: op, Err: ErrNoRenderer}
	}
	defer func() {
		if p := recover(); p != nil {
			err = &RenderError{Op: op, Err: fmt.Errorf("renderer panic: %v", p)}
		}
		if err != nil {
			m.metrics.renderFailed()
			m.logger.Error("renderer failed", "op", op, "err", err)
		}
	}()
	if rerr := fn(m.renderer); rerr != nil {
		return &RenderError{Op: op, Err: rerr}
	}
	return nil
}

// View returns the current view state.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// SetFilter changes the node type filter and persists it. Empty selects all.
func (m *Manager) SetFilter(filterType string) {
	filterType = normalizeFilter(filterType)

	m.mu.Lock()
	m.view.Filter = filterType
	m.mu.Unlock()

	m.persist(PrefFilter, filterType)
}

// SetLayout changes the layout and persists it. Unknown names are rejected.
func (m *Manager) SetLayout(name string) error {
	if err := m.layouts.Validate(name); err != nil {
		return err
	}
	if name == "" {
		name = viz.DefaultLayout
	}

	m.mu.Lock()
	m.view.Layout = name
	m.mu.Unlock()

	m.persist(PrefLayout, name)
	return nil
}

// SetSearch records the search term and returns the visible matches.
func (m *Manager) SetSearch(term string) []string {
	m.mu.Lock()
	m.view.Search = term
	m.mu.Unlock()
	return m.SearchMatches(term)
}

func (m *Manager) persist(key, value string) {
	if m.prefs == nil {
		return
	}
	if err := m.prefs.SetPreference(key, value); err != nil {
		m.logger.Warn("saving preference", "key", key, "err", err)
	}
}

// SelectNode makes id the active node and anchors a tooltip overlay to it.
// Any previous selection's overlay is released first. If the overlay cannot
// be acquired the selection is cleared.
func (m *Manager) SelectNode(ctx context.Context, anchor overlay.Anchor) (*overlay.Handle, error) {
	if !m.graph.HasNode(anchor.NodeID) {
		return nil, fmt.Errorf("selecting %s: %w", anchor.NodeID, graph.ErrNodeNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseActiveLocked()

	h, err := m.overlays.Acquire(ctx, anchor)
	if err != nil {
		m.logger.Warn("acquiring overlay", "node_id", anchor.NodeID, "err", err)
		return nil, err
	}
	m.active = h
	m.view.ActiveNode = anchor.NodeID
	return h, nil
}

// Deselect clears the active node and releases its overlay.
func (m *Manager) Deselect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseActiveLocked()
}

func (m *Manager) releaseActiveLocked() {
	if m.active != nil {
		m.active.Release()
		m.active = nil
	}
	m.view.ActiveNode = ""
}

// ActiveOverlay returns the overlay of the selected node, if any.
func (m *Manager) ActiveOverlay() (*overlay.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// Close releases every overlay. The manager must not select nodes afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.releaseActiveLocked()
	m.mu.Unlock()
	m.overlays.Close()
}

func normalizeFilter(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	if f == "" {
		return graph.FilterAll
	}
	return f
}
