package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the session's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	fetches        *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	nodes          prometheus.Gauge
	edges          prometheus.Gauge
	edgesSkipped   prometheus.Counter
	activeOverlays prometheus.Gauge
	renderFailures prometheus.Counter
}

// NewMetrics registers the session collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gx_fetches_total",
			Help: "Data service fetches by operation and result",
		}, []string{"op", "result"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gx_fetch_duration_seconds",
			Help:    "Data service fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		nodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "gx_graph_nodes",
			Help: "Nodes in the local graph",
		}),
		edges: f.NewGauge(prometheus.GaugeOpts{
			Name: "gx_graph_edges",
			Help: "Edges in the local graph",
		}),
		edgesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "gx_merge_edges_skipped_total",
			Help: "Incoming edges dropped because their key was already known",
		}),
		activeOverlays: f.NewGauge(prometheus.GaugeOpts{
			Name: "gx_active_overlays",
			Help: "Live tooltip overlays",
		}),
		renderFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "gx_render_failures_total",
			Help: "Renderer calls that failed or panicked",
		}),
	}
}

func (m *Metrics) observeFetch(op string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.WithLabelValues(op, result).Inc()
	m.fetchDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) setSize(nodes, edges int) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(nodes))
	m.edges.Set(float64(edges))
}

func (m *Metrics) skippedEdges(n int) {
	if m == nil || n == 0 {
		return
	}
	m.edgesSkipped.Add(float64(n))
}

func (m *Metrics) setActiveOverlays(n int) {
	if m == nil {
		return
	}
	m.activeOverlays.Set(float64(n))
}

func (m *Metrics) renderFailed() {
	if m == nil {
		return
	}
	m.renderFailures.Inc()
}
