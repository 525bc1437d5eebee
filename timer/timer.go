package timer

import (
	"sync"
	"time"

	"github.com/wippyai/shard-runtime/clock"
	"github.com/wippyai/shard-runtime/closure"
)

// Timer fires a callback at a deadline on its service's clock, once or
// periodically. Arming an already armed timer overwrites the deadline
// and period: the last write wins. Cancelling and rearming from inside
// the firing callback is legal and takes effect on the next scheduling
// decision.
//
// Stale schedule entries are detected by a generation counter: every
// arm and cancel bumps the generation, and an entry whose generation
// no longer matches is skipped when it surfaces.
type Timer struct {
	svc *Service

	mu       sync.Mutex
	cb       *closure.Callback
	group    uint32
	gen      uint64
	armed    bool
	deadline clock.Instant
	period   time.Duration
}

// New creates an unarmed timer owning closure c. The closure is
// released exactly once, when the timer is released.
func New(svc *Service, c closure.Closure) *Timer {
	return &Timer{svc: svc, cb: closure.NewCallback(c)}
}

// SetGroup binds callback accounting to the scheduling group with the
// given id. Unbound timers account to the main group.
func (t *Timer) SetGroup(group uint32) {
	t.mu.Lock()
	t.group = group
	t.mu.Unlock()
}

func (t *Timer) armAt(at clock.Instant, period time.Duration) {
	t.mu.Lock()
	t.gen++
	t.armed = true
	t.deadline = at
	t.period = period
	e := entry{deadline: at, gen: t.gen, t: t}
	t.mu.Unlock()

	t.svc.schedule(e)
}

// Arm schedules a single fire d from now.
func (t *Timer) Arm(d time.Duration) {
	t.armAt(t.svc.clk.Now().Add(d), 0)
}

// ArmAt schedules a single fire at the given instant.
func (t *Timer) ArmAt(at clock.Instant) {
	t.armAt(at, 0)
}

// ArmPeriodic schedules repeated fires every period, the first one
// period from now.
func (t *Timer) ArmPeriodic(period time.Duration) {
	t.armAt(t.svc.clk.Now().Add(period), period)
}

// ArmAtPeriodic schedules the first fire at the given instant and
// repeats every period after it.
func (t *Timer) ArmAtPeriodic(at clock.Instant, period time.Duration) {
	t.armAt(at, period)
}

// Rearm is Arm; arming always overwrites the previous schedule.
func (t *Timer) Rearm(d time.Duration) {
	t.Arm(d)
}

// RearmAt is ArmAt; arming always overwrites the previous schedule.
func (t *Timer) RearmAt(at clock.Instant) {
	t.ArmAt(at)
}

// RearmPeriodic is ArmPeriodic; arming always overwrites the previous
// schedule.
func (t *Timer) RearmPeriodic(period time.Duration) {
	t.ArmPeriodic(period)
}

// RearmAtPeriodic is ArmAtPeriodic; arming always overwrites the
// previous schedule.
func (t *Timer) RearmAtPeriodic(at clock.Instant, period time.Duration) {
	t.ArmAtPeriodic(at, period)
}

// Cancel unarms the timer and reports whether it was armed.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return false
	}
	t.armed = false
	t.gen++
	return true
}

// Armed reports whether the timer is scheduled to fire.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Timeout returns the next deadline and whether the timer is armed.
func (t *Timer) Timeout() (clock.Instant, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline, t.armed
}

func (t *Timer) fire(gen uint64, deadline clock.Instant) {
	t.mu.Lock()
	if !t.armed || gen != t.gen {
		t.mu.Unlock()
		return
	}

	cb, group := t.cb, t.group

	if t.period > 0 {
		// Rearm from the deadline, not from now, so a late fire
		// never shifts the cadence.
		t.deadline = deadline.Add(t.period)
		e := entry{deadline: t.deadline, gen: t.gen, t: t}
		t.mu.Unlock()

		t.svc.schedule(e)
		t.svc.dispatch(group, cb)
		return
	}

	t.armed = false
	t.mu.Unlock()

	t.svc.dispatch(group, cb)
}

// Release cancels the timer and releases its callback closure. The
// timer must not be armed again afterwards.
func (t *Timer) Release() {
	t.Cancel()

	t.mu.Lock()
	cb := t.cb
	t.mu.Unlock()
	cb.Release()
}
