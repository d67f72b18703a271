// Package dataservice provides a client for the remote Graph Data Service.
package dataservice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/voltask/graphx/internal/graph"
)

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default request rate in requests per second.
	DefaultRateLimit = 10.0

	// MaxResponseBytes bounds a single response body.
	MaxResponseBytes = 64 << 20
)

// Service paths.
const (
	PathGraph        = "/graph"
	PathNeighborhood = "/neighborhood"
	PathCommunities  = "/communities"
)

var tracer = otel.Tracer("graphx/dataservice")

// Client is a rate-limited HTTP client for the Graph Data Service.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the bearer token passed through on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets the service base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRateLimit sets the request rate in requests per second. Zero or
// negative disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a new Graph Data Service client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs a GET and returns the body of a successful response.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}

	if err := checkHTTPErrors(resp, path, body); err != nil {
		return nil, err
	}
	return body, nil
}

// FetchGraph returns the whole-graph snapshot.
func (c *Client) FetchGraph(ctx context.Context) (graph.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "dataservice.FetchGraph")
	defer span.End()

	body, err := c.get(ctx, PathGraph, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return graph.Snapshot{}, err
	}

	s, err := decodeSnapshot(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return graph.Snapshot{}, err
	}
	span.SetAttributes(
		attribute.Int("graph.nodes", len(s.Nodes)),
		attribute.Int("graph.edges", len(s.Edges)),
	)
	return s, nil
}

// FetchNeighborhood returns the subgraph within depth hops of id.
func (c *Client) FetchNeighborhood(ctx context.Context, id string, depth int) (graph.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "dataservice.FetchNeighborhood")
	defer span.End()
	span.SetAttributes(attribute.String("node.id", id), attribute.Int("depth", depth))

	if depth < 1 {
		return graph.Snapshot{}, graph.ErrInvalidDepth
	}

	query := url.Values{}
	query.Set("id", id)
	query.Set("depth", strconv.Itoa(depth))

	body, err := c.get(ctx, PathNeighborhood, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return graph.Snapshot{}, err
	}

	s, err := decodeSnapshot(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return graph.Snapshot{}, err
	}
	span.SetAttributes(
		attribute.Int("graph.nodes", len(s.Nodes)),
		attribute.Int("graph.edges", len(s.Edges)),
	)
	return s, nil
}

// FetchCommunities returns the node id to community label mapping.
func (c *Client) FetchCommunities(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "dataservice.FetchCommunities")
	defer span.End()

	body, err := c.get(ctx, PathCommunities, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	communities, err := decodeCommunities(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("communities", len(communities)))
	return communities, nil
}
