package shard

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/shard-runtime/closure"
	"github.com/wippyai/shard-runtime/errors"
	"github.com/wippyai/shard-runtime/future"
)

const (
	stateNew int32 = iota
	stateRunning
	stateStopping
	stateStopped
)

// Runtime owns a fixed set of shards, each running tasks sequentially
// on its own goroutine. The shard count is fixed at construction and
// never changes for the runtime's lifetime.
type Runtime struct {
	shards []*Shard
	groups groupRegistry
	state  atomic.Int32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRuntime creates a runtime with the given shard count. A count of
// zero or less means one shard per CPU.
func NewRuntime(count int) (*Runtime, error) {
	if count <= 0 {
		count = runtime.NumCPU()
	}

	rt := &Runtime{}
	rt.groups.init()
	rt.shards = make([]*Shard, count)
	for i := range rt.shards {
		rt.shards[i] = newShard(i, rt)
	}
	return rt, nil
}

// Count returns the number of shards.
func (r *Runtime) Count() int {
	return len(r.shards)
}

// Shard returns the shard at index i.
func (r *Runtime) Shard(i int) (*Shard, error) {
	if i < 0 || i >= len(r.shards) {
		return nil, errors.InvalidShard(i, len(r.shards))
	}
	return r.shards[i], nil
}

func (r *Runtime) running() bool {
	return r.state.Load() == stateRunning
}

// Start launches the shard goroutines. A runtime starts at most once.
func (r *Runtime) Start(ctx context.Context) error {
	if !r.state.CompareAndSwap(stateNew, stateRunning) {
		return errors.AlreadyRunning()
	}

	base, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, s := range r.shards {
		r.wg.Add(1)
		go s.run(base, &r.wg)
	}

	Logger().Info("shard runtime started", zap.Int("shards", len(r.shards)))
	return nil
}

// Stop rejects new work, drains already queued tasks, and waits for
// every shard goroutine to exit or for ctx to expire.
func (r *Runtime) Stop(ctx context.Context) error {
	if !r.state.CompareAndSwap(stateRunning, stateStopping) {
		return errors.NotRunning("stop")
	}

	for _, s := range r.shards {
		close(s.quit)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	r.cancel()
	r.state.Store(stateStopped)
	Logger().Info("shard runtime stopped", zap.Error(err))
	return err
}

// SubmitTo schedules the closure on the given shard and returns a
// future for its result. The closure is released exactly once on every
// path: after invoke on success, and without invoke when the shard
// index is invalid or the runtime is shutting down.
func (r *Runtime) SubmitTo(shardID int, c closure.Closure) *future.Future[any] {
	s, err := r.Shard(shardID)
	if err != nil {
		c.Release()
		return future.Rejected[any](err)
	}

	p, f := future.New[any]()
	cb := closure.NewCallback(c)

	t := task{
		group: mainGroupID,
		fn: func(ctx context.Context) {
			v, callErr := cb.Call(ctx)
			cb.Release()
			if callErr != nil {
				p.Fail(callErr)
				return
			}
			// A closure that kicked off nested async work hands back a
			// future; the submission resolves when that work does.
			if nested, ok := v.(*future.Future[any]); ok {
				nested.OnComplete(future.Inline{}, func(nv any, nerr error) {
					if nerr != nil {
						p.Fail(nerr)
						return
					}
					p.Complete(nv)
				})
				return
			}
			p.Complete(v)
		},
	}

	if err := s.enqueue(t); err != nil {
		cb.Release()
		p.Fail(err)
		return f
	}

	s.submits.Add(1)
	return f
}

// Submit schedules fn on the given shard and returns a typed future
// for its result.
func Submit[T any](r *Runtime, shardID int, fn func(ctx context.Context) (T, error)) *future.Future[T] {
	s, err := r.Shard(shardID)
	if err != nil {
		return future.Rejected[T](err)
	}

	p, f := future.New[T]()
	t := task{
		group: mainGroupID,
		fn: func(ctx context.Context) {
			v, callErr := fn(ctx)
			if callErr != nil {
				p.Fail(callErr)
				return
			}
			p.Complete(v)
		},
	}

	if err := s.enqueue(t); err != nil {
		p.Fail(err)
		return f
	}

	s.submits.Add(1)
	return f
}

// Spawn schedules fn as a background task on the calling shard. It
// must be called from a task already running on a shard.
func Spawn(ctx context.Context, fn func(ctx context.Context)) error {
	s, ok := fromContext(ctx)
	if !ok {
		return errors.NotRunning("spawn")
	}
	return s.enqueue(task{fn: fn, group: s.currentGroup})
}
