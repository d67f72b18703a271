// Package overlay manages tooltip overlays anchored to graph nodes.
//
// An overlay is acquired for a node and must be released when the node is
// deselected, another node is selected, or the owning view goes away. A
// Handle owns the positioning subscription and releases it exactly once.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrPositionFailed marks a positioning computation that could not be
	// completed for one frame (for example, a detached anchor).
	ErrPositionFailed = errors.New("overlay position computation failed")

	// ErrClosed is returned by Acquire after the registry has been closed.
	ErrClosed = errors.New("overlay registry closed")
)

// Anchor is the on-screen point an overlay follows.
type Anchor struct {
	NodeID string  `json:"node_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Position is the computed overlay placement.
type Position struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Placement string  `json:"placement"`
}

// UpdateFunc receives each positioning frame. A non-nil err means the frame
// could not be computed and the overlay keeps its previous position.
type UpdateFunc func(pos Position, err error)

// Positioner is the external positioning engine. Track starts delivering
// frames for anchor and returns a stop function that ends the subscription.
type Positioner interface {
	Track(ctx context.Context, anchor Anchor, update UpdateFunc) (stop func(), err error)
}

// Handle is an acquired overlay.
type Handle struct {
	ID     string `json:"id"`
	Anchor Anchor `json:"anchor"`

	mu       sync.Mutex
	pos      Position
	placed   bool
	skipped  int
	released bool
	stop     func()
	registry *Registry
}

// Position returns the last successfully computed position.
func (h *Handle) Position() (Position, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos, h.placed
}

// Skipped returns the number of frames dropped because positioning failed.
func (h *Handle) Skipped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.skipped
}

// Released reports whether Release has run.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Release stops the positioning subscription and removes the overlay from
// its registry. It is safe to call more than once.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	stop := h.stop
	h.stop = nil
	reg := h.registry
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	if reg != nil {
		reg.forget(h)
	}
}

func (h *Handle) update(pos Position, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return
	}
	if err != nil {
		h.skipped++
		if h.registry != nil {
			h.registry.logger.Debug("overlay reposition skipped",
				"overlay", h.ID, "node_id", h.Anchor.NodeID, "err", err)
		}
		return
	}
	h.pos = pos
	h.placed = true
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for skipped frames.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithActiveHook registers a callback invoked with the active overlay count
// whenever it changes.
func WithActiveHook(fn func(active int)) Option {
	return func(r *Registry) {
		r.onActive = fn
	}
}

// Registry tracks the live overlays of one view, keyed by node id.
type Registry struct {
	positioner Positioner
	logger     *slog.Logger
	onActive   func(int)

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
}

// NewRegistry creates a registry that positions overlays with p. A nil p
// uses StaticPositioner.
func NewRegistry(p Positioner, opts ...Option) *Registry {
	if p == nil {
		p = StaticPositioner{}
	}
	r := &Registry{
		positioner: p,
		logger:     slog.Default(),
		handles:    make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire creates an overlay for anchor, replacing any overlay already
// anchored to the same node. On error nothing is left subscribed.
func (r *Registry) Acquire(ctx context.Context, anchor Anchor) (*Handle, error) {
	if anchor.NodeID == "" {
		return nil, fmt.Errorf("acquiring overlay: empty node id")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquiring overlay: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	prev := r.handles[anchor.NodeID]
	r.mu.Unlock()

	if prev != nil {
		prev.Release()
	}

	h := &Handle{
		ID:       uuid.NewString(),
		Anchor:   anchor,
		registry: r,
	}

	stop, err := r.positioner.Track(ctx, anchor, h.update)
	if err != nil {
		if stop != nil {
			stop()
		}
		return nil, fmt.Errorf("tracking overlay for %s: %w", anchor.NodeID, err)
	}

	h.mu.Lock()
	h.stop = stop
	h.mu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		h.mu.Lock()
		h.registry = nil
		h.mu.Unlock()
		h.Release()
		return nil, ErrClosed
	}
	// A concurrent Acquire for the same node may have stored its handle
	// while we were tracking; the newest one wins.
	displaced := r.handles[anchor.NodeID]
	r.handles[anchor.NodeID] = h
	active := len(r.handles)
	r.mu.Unlock()

	if displaced != nil && displaced != h {
		displaced.Release()
	}
	r.notify(active)
	return h, nil
}

// With acquires an overlay, runs fn, and releases the overlay on every exit
// path including panics.
func (r *Registry) With(ctx context.Context, anchor Anchor, fn func(*Handle) error) error {
	h, err := r.Acquire(ctx, anchor)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h)
}

// Get returns the overlay anchored to nodeID.
func (r *Registry) Get(nodeID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[nodeID]
	return h, ok
}

// Active returns the number of live overlays.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// ReleaseAll releases every live overlay.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Release()
	}
}

// Close releases every overlay and rejects further acquisitions.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.ReleaseAll()
}

func (r *Registry) forget(h *Handle) {
	r.mu.Lock()
	if cur, ok := r.handles[h.Anchor.NodeID]; !ok || cur != h {
		r.mu.Unlock()
		return
	}
	delete(r.handles, h.Anchor.NodeID)
	active := len(r.handles)
	r.mu.Unlock()

	r.notify(active)
}

func (r *Registry) notify(active int) {
	if r.onActive != nil {
		r.onActive(active)
	}
}

// StaticPositioner places the overlay at its anchor once and never moves it.
// It suits hosts without a live viewport, such as the HTTP explorer where the
// browser repositions tooltips itself.
type StaticPositioner struct{}

// Track reports a single frame at the anchor.
func (StaticPositioner) Track(_ context.Context, anchor Anchor, update UpdateFunc) (func(), error) {
	update(Position{X: anchor.X, Y: anchor.Y, Placement: "top"}, nil)
	return func() {}, nil
}
