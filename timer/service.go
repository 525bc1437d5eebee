package timer

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/shard-runtime/clock"
	"github.com/wippyai/shard-runtime/closure"
)

// Dispatcher runs timer callbacks, accounting them to a scheduling
// group where the underlying executor supports groups. A shard is a
// Dispatcher; callbacks then run as tasks on that shard.
type Dispatcher interface {
	Dispatch(group uint32, fn func(ctx context.Context)) bool
}

// Inline runs callbacks on the firing goroutine. Group accounting does
// not apply; intended for tests and standalone use.
type Inline struct{}

func (Inline) Dispatch(_ uint32, fn func(ctx context.Context)) bool {
	fn(context.Background())
	return true
}

type entry struct {
	deadline clock.Instant
	seq      uint64
	gen      uint64
	t        *Timer
}

// entryHeap orders entries by deadline, with insertion order breaking
// ties so timers armed for the same instant fire in arming order.
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Service schedules timers against one clock and dispatches their
// callbacks through one Dispatcher. Steady and lowres services drive
// themselves from the wall; a manual-clock service fires only inside
// Advance.
type Service struct {
	clk  clock.Clock
	disp Dispatcher

	mu     sync.Mutex
	heap   entryHeap
	seq    uint64
	drv    *time.Timer
	closed bool

	fired atomic.Uint64
}

// NewService creates a timer service over clk dispatching through disp.
func NewService(clk clock.Clock, disp Dispatcher) *Service {
	s := &Service{clk: clk, disp: disp}
	if m, ok := clk.(*clock.Manual); ok {
		m.Subscribe(s.process)
	}
	return s
}

// Clock returns the service's time source.
func (s *Service) Clock() clock.Clock {
	return s.clk
}

// Fired returns the number of callbacks dispatched so far.
func (s *Service) Fired() uint64 {
	return s.fired.Load()
}

// Pending returns the number of scheduled heap entries, stale ones
// included until they surface and are skipped.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}

func (s *Service) schedule(e entry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	e.seq = s.seq
	heap.Push(&s.heap, e)
	s.armDriverLocked()
	s.mu.Unlock()
}

func (s *Service) armDriverLocked() {
	if s.clk.Kind() == clock.KindManual || s.closed || len(s.heap) == 0 {
		return
	}
	d := s.heap[0].deadline.Sub(s.clk.Now())
	if d < 0 {
		d = 0
	}
	if s.drv == nil {
		s.drv = time.AfterFunc(d, s.tick)
		return
	}
	s.drv.Reset(d)
}

func (s *Service) tick() {
	s.process(s.clk.Now())
}

// process fires every entry due at or before now, in deadline order.
// A periodic rearm lands back in the heap, so a large jump of the
// clock cascades through every intermediate fire in one call.
func (s *Service) process(now clock.Instant) {
	for {
		s.mu.Lock()
		if s.closed || len(s.heap) == 0 || s.heap[0].deadline > now {
			s.armDriverLocked()
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.heap).(entry)
		s.mu.Unlock()

		e.t.fire(e.gen, e.deadline)
	}
}

func (s *Service) dispatch(group uint32, cb *closure.Callback) {
	s.fired.Add(1)
	ok := s.disp.Dispatch(group, func(ctx context.Context) {
		if _, err := cb.Call(ctx); err != nil {
			Logger().Warn("timer callback failed", zap.Error(err))
		}
	})
	if !ok {
		Logger().Debug("timer callback dropped, dispatcher closed")
	}
}

// Close stops the service. Scheduled timers never fire afterwards;
// their owners still release their callbacks.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.drv != nil {
		s.drv.Stop()
	}
	s.heap = nil
}
