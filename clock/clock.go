package clock

import (
	"sync"
	"time"
)

// Kind identifies one of the runtime's clock sources.
type Kind int

const (
	KindSteady Kind = iota
	KindLowres
	KindManual
)

func (k Kind) String() string {
	switch k {
	case KindSteady:
		return "steady"
	case KindLowres:
		return "lowres"
	case KindManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Instant is a point on a clock's timeline, counted in nanoseconds from
// that clock's epoch. Instants from different clocks are not comparable.
type Instant int64

// Add returns the instant d after i.
func (i Instant) Add(d time.Duration) Instant {
	return i + Instant(d)
}

// Sub returns the duration from o to i.
func (i Instant) Sub(o Instant) time.Duration {
	return time.Duration(i - o)
}

// Nanos returns the raw nanosecond representation.
func (i Instant) Nanos() int64 {
	return int64(i)
}

// FromNanos builds an instant from its raw nanosecond representation.
func FromNanos(n int64) Instant {
	return Instant(n)
}

// Clock is a monotonic time source.
type Clock interface {
	Kind() Kind
	Now() Instant
}

// LowresGranularity is the resolution of the low-overhead clock.
const LowresGranularity = 10 * time.Millisecond

// All monotonic readings are taken relative to process start, so
// instants stay small and the steady epoch is well defined.
var processBase = time.Now()

type steadyClock struct{}

func (steadyClock) Kind() Kind { return KindSteady }

func (steadyClock) Now() Instant {
	return Instant(time.Since(processBase))
}

// Steady is the high-resolution monotonic clock.
var Steady Clock = steadyClock{}

type lowresClock struct{}

func (lowresClock) Kind() Kind { return KindLowres }

func (lowresClock) Now() Instant {
	n := time.Since(processBase)
	return Instant(n - n%LowresGranularity)
}

// Lowres is the low-overhead monotonic clock. Its readings are steady
// readings truncated to LowresGranularity.
var Lowres Clock = lowresClock{}

// Manual is a clock whose time moves only when Advance is called.
// Each Manual instance has its own timeline, so tests stay isolated.
type Manual struct {
	mu   sync.Mutex
	now  Instant
	subs []func(now Instant)
}

// NewManual creates a manual clock starting at instant zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Kind() Kind { return KindManual }

func (m *Manual) Now() Instant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Subscribe registers fn to run after every Advance with the new time.
// Subscribers run on the advancing goroutine, in registration order.
func (m *Manual) Subscribe(fn func(now Instant)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// Advance moves the clock forward by d and notifies subscribers.
// Time never moves backwards; a non-positive d still notifies, so
// work due exactly at the current instant gets processed.
func (m *Manual) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	m.now += Instant(d)
	now := m.now
	subs := make([]func(Instant), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(now)
	}
}
