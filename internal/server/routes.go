package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers the explorer routes on r.
//
//	GET    /                 explorer page
//	POST   /api/load         reload the full graph
//	GET    /api/elements     render payload (?filter=&q=)
//	POST   /api/expand       merge a neighborhood
//	GET    /api/search       label search (?q=)
//	GET    /api/top          highest-degree nodes (?limit=)
//	GET    /api/export       full graph document (?format=json|jsonl)
//	GET    /api/view         view state
//	PUT    /api/view         change filter, layout, or search
//	POST   /api/select/:id   select a node and anchor its overlay
//	DELETE /api/select       clear the selection
//	GET    /healthz          liveness
//	GET    /metrics          Prometheus metrics
func RegisterRoutes(r *gin.Engine, h *Handlers, gatherer prometheus.Gatherer) {
	r.GET("/", h.HandleIndex)
	r.GET("/healthz", h.HandleHealth)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.POST("/load", h.HandleLoad)
	api.GET("/elements", h.HandleElements)
	api.POST("/expand", h.HandleExpand)
	api.GET("/search", h.HandleSearch)
	api.GET("/top", h.HandleTop)
	api.GET("/export", h.HandleExport)
	api.GET("/view", h.HandleGetView)
	api.PUT("/view", h.HandlePutView)
	api.POST("/select/:id", h.HandleSelect)
	api.DELETE("/select", h.HandleDeselect)
}

// NewRouter builds a gin engine with recovery, request ids, and access
// logging.
func NewRouter(h *Handlers, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	RegisterRoutes(r, h, gatherer)
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		requestID := getOrCreateRequestID(c)
		c.Next()
		logger.Debug("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
