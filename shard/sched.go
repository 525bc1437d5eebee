package shard

import (
	"context"
	"sync"

	"github.com/wippyai/shard-runtime/errors"
	"github.com/wippyai/shard-runtime/future"
)

// MaxGroups is the fixed number of scheduling group slots per runtime.
const MaxGroups = 16

const (
	mainGroupID   uint32  = 0
	defaultShares float32 = 1000
)

type groupSlot struct {
	name   string
	active bool
}

type groupRegistry struct {
	mu    sync.Mutex
	slots [MaxGroups]groupSlot
}

func (g *groupRegistry) init() {
	g.slots[mainGroupID] = groupSlot{name: "main", active: true}
}

// Group identifies a scheduling group. Two groups are the same group
// exactly when their IDs match; name and shares are mutable attributes
// that never affect identity.
type Group struct {
	rt *Runtime
	id uint32
}

// ID returns the group's slot index.
func (g Group) ID() uint32 {
	return g.id
}

// IsMain reports whether this is the main group.
func (g Group) IsMain() bool {
	return g.id == mainGroupID
}

// Active reports whether the group currently exists.
func (g Group) Active() bool {
	g.rt.groups.mu.Lock()
	defer g.rt.groups.mu.Unlock()
	return g.rt.groups.slots[g.id].active
}

// Name returns the group's current name.
func (g Group) Name() (string, error) {
	g.rt.groups.mu.Lock()
	defer g.rt.groups.mu.Unlock()
	slot := g.rt.groups.slots[g.id]
	if !slot.active {
		return "", errors.DestroyedGroup(g.id)
	}
	return slot.name, nil
}

// MainGroup returns the always-present main scheduling group.
func (r *Runtime) MainGroup() Group {
	return Group{rt: r, id: mainGroupID}
}

// forEachShard applies fn on every shard and waits for all of them.
// When called from a shard task, that shard's portion runs inline so
// the caller never deadlocks waiting on its own queue.
func (r *Runtime) forEachShard(ctx context.Context, fn func(ctx context.Context, s *Shard) error) error {
	self, _ := fromContext(ctx)

	futs := make([]*future.Future[future.Void], 0, len(r.shards))
	for i, s := range r.shards {
		if s == self {
			continue
		}
		s := s
		futs = append(futs, Submit(r, i, func(ctx context.Context) (future.Void, error) {
			return future.Void{}, fn(ctx, s)
		}))
	}

	var selfErr error
	if self != nil {
		selfErr = fn(ctx, self)
	}

	if _, err := future.All(futs...).Await(ctx); err != nil {
		return err
	}
	return selfErr
}

// CreateGroup allocates a scheduling group on every shard. Group slots
// are limited to MaxGroups; creation fails once all slots are in use.
func (r *Runtime) CreateGroup(ctx context.Context, name string, shares float32) (Group, error) {
	if !r.running() {
		return Group{}, errors.NotRunning("create scheduling group")
	}

	r.groups.mu.Lock()
	id := uint32(0)
	found := false
	for i := uint32(1); i < MaxGroups; i++ {
		if !r.groups.slots[i].active {
			id = i
			found = true
			break
		}
	}
	if !found {
		r.groups.mu.Unlock()
		return Group{}, errors.GroupExhausted(MaxGroups)
	}
	r.groups.slots[id] = groupSlot{name: name, active: true}
	r.groups.mu.Unlock()

	err := r.forEachShard(ctx, func(_ context.Context, s *Shard) error {
		s.groupShares[id] = shares
		return nil
	})
	if err != nil {
		r.groups.mu.Lock()
		r.groups.slots[id] = groupSlot{}
		r.groups.mu.Unlock()
		return Group{}, err
	}
	return Group{rt: r, id: id}, nil
}

// DestroyGroup retires a scheduling group on every shard. The main
// group cannot be destroyed.
func (r *Runtime) DestroyGroup(ctx context.Context, g Group) error {
	if g.id == mainGroupID {
		return errors.Contract(errors.PhaseSched, "main group cannot be destroyed")
	}

	r.groups.mu.Lock()
	if !r.groups.slots[g.id].active {
		r.groups.mu.Unlock()
		return errors.DestroyedGroup(g.id)
	}
	r.groups.slots[g.id] = groupSlot{}
	r.groups.mu.Unlock()

	return r.forEachShard(ctx, func(_ context.Context, s *Shard) error {
		s.groupShares[g.id] = 0
		return nil
	})
}

// RenameGroup changes the group's name on every shard. The fan-out
// doubles as a barrier: tasks queued before the rename observe the old
// name, tasks queued after it observe the new one.
func (r *Runtime) RenameGroup(ctx context.Context, g Group, name string) error {
	r.groups.mu.Lock()
	if !r.groups.slots[g.id].active {
		r.groups.mu.Unlock()
		return errors.DestroyedGroup(g.id)
	}
	r.groups.slots[g.id].name = name
	r.groups.mu.Unlock()

	return r.forEachShard(ctx, func(context.Context, *Shard) error {
		return nil
	})
}

// SetShares changes the group's share weight on the calling shard
// only. Each shard tunes its own weights independently.
func (g Group) SetShares(ctx context.Context, shares float32) error {
	s, ok := fromContext(ctx)
	if !ok {
		return errors.NotRunning("set shares")
	}
	if !g.Active() {
		return errors.DestroyedGroup(g.id)
	}
	s.groupShares[g.id] = shares
	return nil
}

// Shares returns the group's share weight on the calling shard.
func (g Group) Shares(ctx context.Context) (float32, error) {
	s, ok := fromContext(ctx)
	if !ok {
		return 0, errors.NotRunning("shares")
	}
	if !g.Active() {
		return 0, errors.DestroyedGroup(g.id)
	}
	return s.groupShares[g.id], nil
}

// CurrentGroup returns the scheduling group of the calling task.
func CurrentGroup(ctx context.Context) (Group, error) {
	s, ok := fromContext(ctx)
	if !ok {
		return Group{}, errors.NotRunning("current group")
	}
	return Group{rt: s.rt, id: s.currentGroup}, nil
}

// RunInGroup schedules fn on the calling shard under group g.
func RunInGroup(ctx context.Context, g Group, fn func(ctx context.Context)) error {
	s, ok := fromContext(ctx)
	if !ok {
		return errors.NotRunning("run in group")
	}
	if !g.Active() {
		return errors.DestroyedGroup(g.id)
	}
	return s.enqueue(task{fn: fn, group: g.id})
}
