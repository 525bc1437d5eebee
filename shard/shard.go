package shard

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/shard-runtime/errors"
)

// taskQueueDepth is the buffered capacity of each shard's task queue.
// Enqueueing blocks once the queue is full, which is the runtime's
// backpressure mechanism.
const taskQueueDepth = 1024

type task struct {
	fn    func(ctx context.Context)
	group uint32
}

// Shard is a single execution lane of the runtime. All tasks enqueued
// on a shard run sequentially on one goroutine, so shard-owned state
// needs no locking as long as it is only touched from tasks.
type Shard struct {
	id    int
	rt    *Runtime
	tasks chan task
	quit  chan struct{}

	// Only touched from the shard goroutine.
	currentGroup uint32
	groupShares  [MaxGroups]float32

	local sync.Map

	executed atomic.Uint64
	failed   atomic.Uint64
	submits  atomic.Uint64
}

func newShard(id int, rt *Runtime) *Shard {
	s := &Shard{
		id:    id,
		rt:    rt,
		tasks: make(chan task, taskQueueDepth),
		quit:  make(chan struct{}),
	}
	s.groupShares[mainGroupID] = defaultShares
	return s
}

// ID returns the shard's index within the runtime.
func (s *Shard) ID() int {
	return s.id
}

// Runtime returns the runtime this shard belongs to.
func (s *Shard) Runtime() *Runtime {
	return s.rt
}

func (s *Shard) run(base context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ctx := withShard(base, s)
	for {
		select {
		case <-s.quit:
			s.drain(ctx)
			return
		case t := <-s.tasks:
			s.execute(ctx, t)
		}
	}
}

// drain runs tasks that were already queued when the shard was asked
// to stop. New enqueues are rejected by this point.
func (s *Shard) drain(ctx context.Context) {
	for {
		select {
		case t := <-s.tasks:
			s.execute(ctx, t)
		default:
			return
		}
	}
}

func (s *Shard) execute(ctx context.Context, t task) {
	prev := s.currentGroup
	s.currentGroup = t.group
	s.executed.Add(1)
	defer func() {
		s.currentGroup = prev
		if r := recover(); r != nil {
			s.failed.Add(1)
			Logger().Error("task panicked",
				zap.Int("shard", s.id),
				zap.Any("panic", r))
		}
	}()
	t.fn(ctx)
}

func (s *Shard) enqueue(t task) error {
	if !s.rt.running() {
		return errors.Shutdown(errors.PhaseSubmit, "runtime is not accepting tasks")
	}
	select {
	case s.tasks <- t:
		return nil
	case <-s.quit:
		return errors.Shutdown(errors.PhaseSubmit, "shard is stopping")
	}
}

// Execute schedules fn on this shard's task queue. It implements
// future.Executor, so continuations resolve back onto their shard.
func (s *Shard) Execute(fn func()) bool {
	err := s.enqueue(task{fn: func(context.Context) { fn() }, group: mainGroupID})
	return err == nil
}

// Dispatch schedules fn on this shard under the given scheduling
// group id, passing the shard's task context. It reports false when
// the shard is no longer accepting work.
func (s *Shard) Dispatch(group uint32, fn func(ctx context.Context)) bool {
	if group >= MaxGroups {
		group = mainGroupID
	}
	return s.enqueue(task{fn: fn, group: group}) == nil
}

// QueueDepth returns the number of tasks currently queued.
func (s *Shard) QueueDepth() int {
	return len(s.tasks)
}

// Stats is a point-in-time snapshot of a shard's counters.
type Stats struct {
	TasksExecuted uint64
	TasksFailed   uint64
	CrossSubmits  uint64
	QueueDepth    int
}

// Stats returns a snapshot of this shard's counters.
func (s *Shard) Stats() Stats {
	return Stats{
		TasksExecuted: s.executed.Load(),
		TasksFailed:   s.failed.Load(),
		CrossSubmits:  s.submits.Load(),
		QueueDepth:    len(s.tasks),
	}
}

// SetLocal stores a shard-local value under key.
func (s *Shard) SetLocal(key, value any) {
	s.local.Store(key, value)
}

// Local retrieves a shard-local value by key.
func (s *Shard) Local(key any) (any, bool) {
	return s.local.Load(key)
}

// DeleteLocal removes a shard-local value.
func (s *Shard) DeleteLocal(key any) {
	s.local.Delete(key)
}
