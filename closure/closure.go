package closure

import (
	"context"

	"github.com/wippyai/shard-runtime/errors"
)

// InvokeFunc runs the unit of work identified by the payload handle.
// It may be called at most once per logical unit of work, on the shard
// that currently owns the closure.
type InvokeFunc func(ctx context.Context, payload Handle) (any, error)

// DropFunc releases the payload. The owning side calls it exactly once
// over the closure's lifetime, whether or not the invoke ran.
type DropFunc func(payload Handle)

// Closure is a caller-owned unit of work crossing the runtime boundary:
// an opaque payload handle plus the functions that invoke and release it.
// Ownership transfers atomically when a Closure is passed into a runtime
// API; from then on the runtime is responsible for calling Drop on every
// path, including failure paths.
type Closure struct {
	Payload Handle
	Invoke  InvokeFunc
	Drop    DropFunc
}

// Valid reports whether the closure carries an invoke function.
func (c Closure) Valid() bool {
	return c.Invoke != nil
}

// Release runs the drop function, if any. Callers that never handed the
// closure to a runtime API use this to honor the release obligation.
func (c Closure) Release() {
	if c.Drop != nil {
		c.Drop(c.Payload)
	}
}

// Func adapts a Go function into a Closure backed by table t. The
// function is registered as the payload; drop removes it from the table.
func Func(t *Table, fn func(ctx context.Context) (any, error)) (Closure, error) {
	if fn == nil {
		return Closure{}, errors.InvalidInput(errors.PhaseClosure, "closure function is nil")
	}
	h, err := t.Register(fn)
	if err != nil {
		return Closure{}, err
	}
	return Closure{
		Payload: h,
		Invoke: func(ctx context.Context, payload Handle) (any, error) {
			v, ok := t.Get(payload)
			if !ok {
				return nil, errors.Contract(errors.PhaseClosure, "invoke on released payload")
			}
			return v.(func(ctx context.Context) (any, error))(ctx)
		},
		Drop: func(payload Handle) {
			t.Drop(payload)
		},
	}, nil
}

// VoidFunc adapts a niladic function into a Closure backed by table t.
func VoidFunc(t *Table, fn func()) (Closure, error) {
	if fn == nil {
		return Closure{}, errors.InvalidInput(errors.PhaseClosure, "closure function is nil")
	}
	return Func(t, func(context.Context) (any, error) {
		fn()
		return nil, nil
	})
}

// Of adapts a Go function into a Closure backed by the default table.
func Of(fn func(ctx context.Context) (any, error)) (Closure, error) {
	return Func(Default(), fn)
}

// OfVoid adapts a niladic function into a Closure backed by the default table.
func OfVoid(fn func()) (Closure, error) {
	return VoidFunc(Default(), fn)
}
