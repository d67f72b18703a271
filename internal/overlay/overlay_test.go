package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakePositioner records subscriptions and lets tests push frames.
type fakePositioner struct {
	mu      sync.Mutex
	started int
	stopped int
	updates map[string]UpdateFunc
	failAll error

	// When gate is set, Track signals entered and blocks until gate closes.
	gate    chan struct{}
	entered chan struct{}
}

func newFakePositioner() *fakePositioner {
	return &fakePositioner{updates: make(map[string]UpdateFunc)}
}

func (f *fakePositioner) Track(_ context.Context, anchor Anchor, update UpdateFunc) (func(), error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	f.started++
	f.updates[anchor.NodeID] = update
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.stopped++
		delete(f.updates, anchor.NodeID)
	}, nil
}

func (f *fakePositioner) push(nodeID string, pos Position, err error) {
	f.mu.Lock()
	update := f.updates[nodeID]
	f.mu.Unlock()
	if update != nil {
		update(pos, err)
	}
}

func (f *fakePositioner) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started - f.stopped
}

func TestRegistry_AcquireRelease(t *testing.T) {
	fp := newFakePositioner()
	r := NewRegistry(fp)

	h, err := r.Acquire(context.Background(), Anchor{NodeID: "a"})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if h.ID == "" {
		t.Error("handle id should be set")
	}
	if r.Active() != 1 || fp.live() != 1 {
		t.Fatalf("active = %d live = %d, want 1/1", r.Active(), fp.live())
	}

	h.Release()
	h.Release() // idempotent

	if r.Active() != 0 {
		t.Errorf("active after release = %d", r.Active())
	}
	if fp.stopped != 1 {
		t.Errorf("stop called %d times, want 1", fp.stopped)
	}
	if !h.Released() {
		t.Error("Released() = false after Release")
	}
}

func TestRegistry_ReacquireReplacesPrevious(t *testing.T) {
	fp := newFakePositioner()
	r := NewRegistry(fp)

	first, _ := r.Acquire(context.Background(), Anchor{NodeID: "a"})
	second, err := r.Acquire(context.Background(), Anchor{NodeID: "a"})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if !first.Released() {
		t.Error("previous overlay for the same node should be released")
	}
	if second.Released() {
		t.Error("new overlay should be live")
	}
	if r.Active() != 1 || fp.live() != 1 {
		t.Errorf("active = %d live = %d, want 1/1", r.Active(), fp.live())
	}

	// Releasing the stale handle must not evict the new one.
	first.Release()
	if got, ok := r.Get("a"); !ok || got != second {
		t.Error("stale release evicted the live overlay")
	}
}

func TestRegistry_ConcurrentAcquireSameNode(t *testing.T) {
	fp := newFakePositioner()
	fp.gate = make(chan struct{})
	fp.entered = make(chan struct{}, 2)
	r := NewRegistry(fp)

	var wg sync.WaitGroup
	handles := make([]*Handle, 2)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := r.Acquire(context.Background(), Anchor{NodeID: "a"})
			if err != nil {
				t.Errorf("Acquire: %v", err)
			}
			handles[i] = h
		}(i)
	}

	// Both calls are tracking before either is stored.
	<-fp.entered
	<-fp.entered
	close(fp.gate)
	wg.Wait()

	if r.Active() != 1 || fp.live() != 1 {
		t.Errorf("active = %d live = %d, want 1/1", r.Active(), fp.live())
	}
	released := 0
	for _, h := range handles {
		if h != nil && h.Released() {
			released++
		}
	}
	if released != 1 {
		t.Errorf("%d handles released, want the displaced one only", released)
	}

	r.Close()
	if fp.live() != 0 {
		t.Errorf("%d positioning subscriptions still live after Close", fp.live())
	}
}

func TestRegistry_TrackFailureLeavesNothing(t *testing.T) {
	fp := newFakePositioner()
	fp.failAll = errors.New("detached")
	r := NewRegistry(fp)

	if _, err := r.Acquire(context.Background(), Anchor{NodeID: "a"}); err == nil {
		t.Fatal("expected error")
	}
	if r.Active() != 0 {
		t.Errorf("active = %d after failed acquire", r.Active())
	}
}

func TestRegistry_CanceledContext(t *testing.T) {
	fp := newFakePositioner()
	r := NewRegistry(fp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Acquire(ctx, Anchor{NodeID: "a"}); err == nil {
		t.Fatal("expected error for canceled context")
	}
	if fp.started != 0 {
		t.Error("positioner should not be subscribed")
	}
}

func TestRegistry_WithReleasesOnError(t *testing.T) {
	fp := newFakePositioner()
	r := NewRegistry(fp)
	boom := errors.New("boom")

	err := r.With(context.Background(), Anchor{NodeID: "a"}, func(h *Handle) error {
		if r.Active() != 1 {
			t.Errorf("active inside With = %d", r.Active())
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if r.Active() != 0 || fp.live() != 0 {
		t.Errorf("overlay leaked: active = %d live = %d", r.Active(), fp.live())
	}
}

func TestRegistry_WithReleasesOnPanic(t *testing.T) {
	fp := newFakePositioner()
	r := NewRegistry(fp)

	func() {
		defer func() { _ = recover() }()
		_ = r.With(context.Background(), Anchor{NodeID: "a"}, func(*Handle) error {
			panic("render blew up")
		})
	}()

	if r.Active() != 0 || fp.live() != 0 {
		t.Errorf("overlay leaked after panic: active = %d live = %d", r.Active(), fp.live())
	}
}

func TestRegistry_CloseReleasesAll(t *testing.T) {
	fp := newFakePositioner()
	var activeSeen []int
	r := NewRegistry(fp, WithActiveHook(func(n int) { activeSeen = append(activeSeen, n) }))

	r.Acquire(context.Background(), Anchor{NodeID: "a"})
	r.Acquire(context.Background(), Anchor{NodeID: "b"})
	r.Close()

	if r.Active() != 0 || fp.live() != 0 {
		t.Errorf("active = %d live = %d after Close", r.Active(), fp.live())
	}
	if _, err := r.Acquire(context.Background(), Anchor{NodeID: "c"}); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if len(activeSeen) == 0 || activeSeen[len(activeSeen)-1] != 0 {
		t.Errorf("active hook history = %v, want to end at 0", activeSeen)
	}
}

func TestHandle_PositionFailureSkipsFrame(t *testing.T) {
	fp := newFakePositioner()
	r := NewRegistry(fp)
	h, _ := r.Acquire(context.Background(), Anchor{NodeID: "a"})

	if _, ok := h.Position(); ok {
		t.Error("no frame delivered yet")
	}

	fp.push("a", Position{X: 10, Y: 20}, nil)
	fp.push("a", Position{X: 99, Y: 99}, ErrPositionFailed)

	pos, ok := h.Position()
	if !ok || pos.X != 10 || pos.Y != 20 {
		t.Errorf("position = %+v (%v), want last good frame", pos, ok)
	}
	if h.Skipped() != 1 {
		t.Errorf("skipped = %d, want 1", h.Skipped())
	}
}

func TestStaticPositioner(t *testing.T) {
	r := NewRegistry(nil)
	h, err := r.Acquire(context.Background(), Anchor{NodeID: "a", X: 3, Y: 4})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pos, ok := h.Position()
	if !ok || pos.X != 3 || pos.Y != 4 {
		t.Errorf("position = %+v, want anchor coordinates", pos)
	}
}

func TestRegistry_EmptyNodeID(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Acquire(context.Background(), Anchor{}); err == nil {
		t.Error("expected error for empty node id")
	}
}
