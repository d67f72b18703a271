package storage

import (
	"context"
	"fmt"

	"github.com/voltask/graphx/internal/graph"
)

// OfflineSource serves graph requests from a cached snapshot instead of the
// data service. Neighborhoods are computed locally and communities are read
// back from node properties.
type OfflineSource struct {
	db   *DB
	name string
}

// NewOfflineSource returns a source backed by the snapshot stored under name.
// An empty name uses DefaultSnapshot.
func NewOfflineSource(db *DB, name string) *OfflineSource {
	if name == "" {
		name = DefaultSnapshot
	}
	return &OfflineSource{db: db, name: name}
}

// FetchGraph returns the cached snapshot.
func (o *OfflineSource) FetchGraph(ctx context.Context) (graph.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return graph.Snapshot{}, err
	}
	return o.db.LoadSnapshot(o.name)
}

// FetchNeighborhood returns the nodes within depth hops of id in the cached
// snapshot.
func (o *OfflineSource) FetchNeighborhood(ctx context.Context, id string, depth int) (graph.Snapshot, error) {
	if depth < 1 {
		return graph.Snapshot{}, graph.ErrInvalidDepth
	}
	s, err := o.FetchGraph(ctx)
	if err != nil {
		return graph.Snapshot{}, err
	}
	sub, err := graph.Neighborhood(s, id, depth)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("offline neighborhood: %w", err)
	}
	return sub, nil
}

// FetchCommunities returns the community labels recorded on cached nodes.
func (o *OfflineSource) FetchCommunities(ctx context.Context) (map[string]string, error) {
	s, err := o.FetchGraph(ctx)
	if err != nil {
		return nil, err
	}
	communities := make(map[string]string)
	for i := range s.Nodes {
		if c := s.Nodes[i].Community(); c != "" {
			communities[s.Nodes[i].ID] = c
		}
	}
	return communities, nil
}
