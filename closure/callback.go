package closure

import (
	"context"

	"github.com/wippyai/shard-runtime/errors"
)

// Callback wraps a Closure so that exactly one drop happens over the
// callback's full lifetime no matter how many times it is moved.
// Only one live Callback for a given closure is valid at a time: Move
// deactivates the source and activates the destination. Releasing an
// invalidated callback is a no-op, so a moved-from temporary never
// double-drops the payload.
//
// Call does not invalidate: timers call a periodic callback many times
// before it is finally released.
type Callback struct {
	c     Closure
	valid bool
}

// NewCallback takes ownership of c.
func NewCallback(c Closure) *Callback {
	return &Callback{c: c, valid: c.Valid() || c.Drop != nil}
}

// Valid reports whether this instance currently owns the closure.
func (cb *Callback) Valid() bool {
	return cb.valid
}

// Move transfers ownership to a new Callback, invalidating the receiver.
func (cb *Callback) Move() *Callback {
	if !cb.valid {
		return &Callback{}
	}
	next := &Callback{c: cb.c, valid: true}
	cb.valid = false
	return next
}

// Call invokes the closure. Calling through an invalidated instance is
// a contract violation and is reported rather than executed.
func (cb *Callback) Call(ctx context.Context) (any, error) {
	if !cb.valid {
		return nil, errors.Contract(errors.PhaseClosure, "call on invalidated callback")
	}
	if cb.c.Invoke == nil {
		return nil, nil
	}
	return cb.c.Invoke(ctx, cb.c.Payload)
}

// Release drops the closure if this instance still owns it. Safe to
// call more than once; only the first call on a valid instance drops.
func (cb *Callback) Release() {
	if !cb.valid {
		return
	}
	cb.valid = false
	if cb.c.Drop != nil {
		cb.c.Drop(cb.c.Payload)
	}
}
