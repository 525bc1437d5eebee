package future

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/shard-runtime/errors"
)

// State is the resolution state of a future.
type State int32

const (
	Pending State = iota
	Ready
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Executor schedules a continuation for execution. Execute returns false
// when the executor can no longer accept work, in which case the
// continuation runs inline as a fallback so results are never lost.
type Executor interface {
	Execute(fn func()) bool
}

// Inline runs continuations on the calling goroutine.
type Inline struct{}

func (Inline) Execute(fn func()) bool {
	fn()
	return true
}

type continuation[T any] struct {
	exec Executor
	fn   func(value T, err error)
}

type shared[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{}
	conts []continuation[T]
}

// Promise is the producer half of a one-shot result channel.
type Promise[T any] struct {
	s *shared[T]
}

// Future is the consumer half of a one-shot result channel.
type Future[T any] struct {
	s *shared[T]
}

// Void is the result type of futures that carry no value.
type Void = struct{}

// New creates a linked promise/future pair in the pending state.
func New[T any]() (*Promise[T], *Future[T]) {
	s := &shared[T]{done: make(chan struct{})}
	return &Promise[T]{s: s}, &Future[T]{s: s}
}

// Resolved returns a future already holding value.
func Resolved[T any](value T) *Future[T] {
	p, f := New[T]()
	p.Complete(value)
	return f
}

// Rejected returns a future already holding err.
func Rejected[T any](err error) *Future[T] {
	p, f := New[T]()
	p.Fail(err)
	return f
}

func (s *shared[T]) resolve(state State, value T, err error) error {
	s.mu.Lock()
	switch s.state {
	case Pending:
	case Cancelled:
		// The consumer abandoned the future; the late result is discarded.
		s.mu.Unlock()
		return nil
	default:
		prev := s.state
		s.mu.Unlock()
		Logger().Warn("future resolved twice", zap.Stringer("state", prev))
		return errors.DoubleResolve(prev.String())
	}

	s.state = state
	s.value = value
	s.err = err
	conts := s.conts
	s.conts = nil
	close(s.done)
	s.mu.Unlock()

	for _, c := range conts {
		dispatch(c, value, err)
	}
	return nil
}

func dispatch[T any](c continuation[T], value T, err error) {
	fn := c.fn
	if c.exec == nil || !c.exec.Execute(func() { fn(value, err) }) {
		fn(value, err)
	}
}

// Complete resolves the promise with value. Resolving an already
// resolved promise reports a double-resolve; resolving a cancelled
// promise silently discards the value.
func (p *Promise[T]) Complete(value T) error {
	return p.s.resolve(Ready, value, nil)
}

// Fail resolves the promise with err.
func (p *Promise[T]) Fail(err error) error {
	var zero T
	return p.s.resolve(Failed, zero, err)
}

// State returns the current resolution state.
func (f *Future[T]) State() State {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.s.state
}

// TryGet returns the result without blocking. The boolean is false while
// the future is still pending.
func (f *Future[T]) TryGet() (T, error, bool) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.state == Pending {
		var zero T
		return zero, nil, false
	}
	return f.s.value, f.s.err, true
}

// Await blocks until the future resolves or ctx is done. Context
// cancellation moves a pending future to Cancelled and unblocks every
// waiter; a producer completing afterwards is silently ignored.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.s.done:
		return f.s.value, f.s.err
	default:
	}

	select {
	case <-f.s.done:
		return f.s.value, f.s.err
	case <-ctx.Done():
	}

	f.s.mu.Lock()
	if f.s.state == Pending {
		f.s.state = Cancelled
		f.s.err = ctx.Err()
		conts := f.s.conts
		f.s.conts = nil
		close(f.s.done)
		f.s.mu.Unlock()

		var zero T
		for _, c := range conts {
			dispatch(c, zero, ctx.Err())
		}
		return zero, ctx.Err()
	}
	f.s.mu.Unlock()
	return f.s.value, f.s.err
}

// OnComplete registers fn to run on exec once the future resolves. If
// the future already resolved, fn is dispatched immediately.
func (f *Future[T]) OnComplete(exec Executor, fn func(value T, err error)) {
	f.s.mu.Lock()
	if f.s.state == Pending {
		f.s.conts = append(f.s.conts, continuation[T]{exec: exec, fn: fn})
		f.s.mu.Unlock()
		return
	}
	value, err := f.s.value, f.s.err
	f.s.mu.Unlock()

	dispatch(continuation[T]{exec: exec, fn: fn}, value, err)
}

// All returns a future that resolves once every input future has
// resolved. The result preserves input order. If any input failed, All
// fails with the error of the lowest-indexed failure, but only after
// every input has settled, so partially completed fan-outs can be
// observed in full.
func All[T any](futs ...*Future[T]) *Future[[]T] {
	p, f := New[[]T]()
	if len(futs) == 0 {
		p.Complete(nil)
		return f
	}

	var (
		mu      sync.Mutex
		results = make([]T, len(futs))
		errs    = make([]error, len(futs))
		left    = len(futs)
	)

	for i, in := range futs {
		i := i
		in.OnComplete(Inline{}, func(value T, err error) {
			mu.Lock()
			results[i] = value
			errs[i] = err
			left--
			settled := left == 0
			mu.Unlock()

			if !settled {
				return
			}
			for _, e := range errs {
				if e != nil {
					p.Fail(e)
					return
				}
			}
			p.Complete(results)
		})
	}
	return f
}
