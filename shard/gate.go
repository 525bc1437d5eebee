package shard

import (
	"context"
	"sync"

	"github.com/wippyai/shard-runtime/errors"
)

// Gate tracks in-flight background work so shutdown can wait for it.
// Enter fails once the gate is closed, so no new work can slip in
// while Close is draining.
type Gate struct {
	mu     sync.Mutex
	count  int
	closed bool
	empty  chan struct{}
}

// Enter registers one unit of in-flight work.
func (g *Gate) Enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errors.Shutdown(errors.PhaseRuntime, "gate is closed")
	}
	g.count++
	return nil
}

// Leave retires one unit of in-flight work.
func (g *Gate) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count == 0 {
		return
	}
	g.count--
	if g.count == 0 && g.empty != nil {
		close(g.empty)
		g.empty = nil
	}
}

// Count returns the number of units currently inside the gate.
func (g *Gate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Close rejects further Enter calls and waits until every unit that
// already entered has left, or until ctx expires.
func (g *Gate) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	if g.count == 0 {
		g.mu.Unlock()
		return nil
	}
	if g.empty == nil {
		g.empty = make(chan struct{})
	}
	empty := g.empty
	g.mu.Unlock()

	select {
	case <-empty:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
