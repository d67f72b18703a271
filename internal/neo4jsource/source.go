// Package neo4jsource serves graph snapshots straight from a Neo4j database.
package neo4jsource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/voltask/graphx/internal/graph"
)

// Runner executes a Cypher query and returns a fully-buffered result.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// Executor runs queries through the official driver.
type Executor struct {
	Driver neo4j.DriverWithContext
	DBName string
}

// NewExecutor creates a driver for uri with basic auth.
func NewExecutor(uri, username, password, dbName string) (*Executor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	return &Executor{Driver: driver, DBName: dbName}, nil
}

// Verify checks connectivity.
func (e *Executor) Verify(ctx context.Context) error {
	return e.Driver.VerifyConnectivity(ctx)
}

// Run executes query with ExecuteQuery and the eager transformer.
func (e *Executor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if e.DBName != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(e.DBName))
	}
	result, err := neo4j.ExecuteQuery(ctx, e.Driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("executing neo4j query: %w", err)
	}
	return result, nil
}

// Close releases the driver.
func (e *Executor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

const (
	queryGraph = `MATCH (n) OPTIONAL MATCH (n)-[r]->(m) RETURN n, r, m`

	// The traversal bound cannot be a parameter; it is formatted in after
	// validation. Local ids are strings, so numeric id properties are
	// compared through toString.
	queryNeighborhood = `MATCH (start) WHERE toString(start.id) = $id OR elementId(start) = $id
MATCH p = (start)-[*0..%d]-(m)
RETURN nodes(p) AS ns, relationships(p) AS rs`

	queryCommunities = `MATCH (n) WHERE n.community IS NOT NULL
RETURN coalesce(toString(n.id), elementId(n)) AS id, toString(n.community) AS community`
)

// Source implements the session data service on Neo4j.
type Source struct {
	runner Runner
	logger *slog.Logger
}

// New returns a Source that queries through runner.
func New(runner Runner, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{runner: runner, logger: logger}
}

// FetchGraph returns every node and relationship.
func (s *Source) FetchGraph(ctx context.Context) (graph.Snapshot, error) {
	res, err := s.runner.Run(ctx, queryGraph, nil)
	if err != nil {
		return graph.Snapshot{}, err
	}
	snap := snapshotFromRecords(res.Records)
	s.logger.Debug("neo4j graph fetched", "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	return snap, nil
}

// FetchNeighborhood returns every path of up to depth hops from id.
func (s *Source) FetchNeighborhood(ctx context.Context, id string, depth int) (graph.Snapshot, error) {
	if depth < 1 {
		return graph.Snapshot{}, graph.ErrInvalidDepth
	}
	res, err := s.runner.Run(ctx, fmt.Sprintf(queryNeighborhood, depth), map[string]any{"id": id})
	if err != nil {
		return graph.Snapshot{}, err
	}
	if len(res.Records) == 0 {
		return graph.Snapshot{}, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	return snapshotFromRecords(res.Records), nil
}

// FetchCommunities returns the community property of every node that has one.
func (s *Source) FetchCommunities(ctx context.Context) (map[string]string, error) {
	res, err := s.runner.Run(ctx, queryCommunities, nil)
	if err != nil {
		return nil, err
	}
	return communitiesFromRecords(res.Records), nil
}
