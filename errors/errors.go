package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the runtime the error occurred
type Phase string

const (
	PhaseClock   Phase = "clock"   // clock conversion and manual time
	PhaseClosure Phase = "closure" // closure registration and release
	PhaseFuture  Phase = "future"  // future resolution and awaiting
	PhaseTimer   Phase = "timer"   // timer arming and firing
	PhaseSched   Phase = "sched"   // scheduling group operations
	PhaseSubmit  Phase = "submit"  // cross-shard submission
	PhaseService Phase = "service" // distributed service lifecycle
	PhaseRuntime Phase = "runtime" // shard runtime lifecycle
	PhaseApp     Phase = "app"     // process bootstrap
	PhaseGuest   Phase = "guest"   // guest module adaptation
)

// Kind categorizes the error
type Kind string

const (
	KindContractViolation Kind = "contract_violation"
	KindDoubleResolve     Kind = "double_resolve"
	KindDoubleStop        Kind = "double_stop"
	KindInvalidShard      Kind = "invalid_shard"
	KindDestroyedGroup    Kind = "destroyed_group"
	KindGroupExhausted    Kind = "group_exhausted"
	KindFactoryFailed     Kind = "factory_failed"
	KindAllocation        Kind = "allocation"
	KindNotRunning        Kind = "not_running"
	KindAlreadyRunning    Kind = "already_running"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindShutdown          Kind = "shutdown"
)

// Error is the structured error type used throughout the runtime.
// Shard is the shard index the error relates to, or -1 when the error
// is not bound to a particular shard.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Shard  int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Shard >= 0 {
		fmt.Fprintf(&b, " on shard %d", e.Shard)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
			Shard: -1,
		},
	}
}

// Shard sets the shard index
func (b *Builder) Shard(shard int) *Builder {
	b.err.Shard = shard
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// DoubleResolve creates the error reported when a future is resolved twice
func DoubleResolve(state string) *Error {
	return &Error{
		Phase:  PhaseFuture,
		Kind:   KindDoubleResolve,
		Detail: fmt.Sprintf("future already %s", state),
		Shard:  -1,
	}
}

// DoubleStop creates the error reported when a service is stopped twice
func DoubleStop() *Error {
	return &Error{
		Phase:  PhaseService,
		Kind:   KindDoubleStop,
		Detail: "service already stopped",
		Shard:  -1,
	}
}

// InvalidShard creates an error for a shard index outside [0, count)
func InvalidShard(shard, count int) *Error {
	return &Error{
		Phase:  PhaseSubmit,
		Kind:   KindInvalidShard,
		Detail: fmt.Sprintf("shard %d out of range (count %d)", shard, count),
		Value:  shard,
		Shard:  -1,
	}
}

// DestroyedGroup creates an error for operations on a destroyed scheduling group
func DestroyedGroup(id uint32) *Error {
	return &Error{
		Phase:  PhaseSched,
		Kind:   KindDestroyedGroup,
		Detail: fmt.Sprintf("scheduling group %d is destroyed", id),
		Value:  id,
		Shard:  -1,
	}
}

// GroupExhausted creates an error for exceeding the scheduling group limit
func GroupExhausted(max int) *Error {
	return &Error{
		Phase:  PhaseSched,
		Kind:   KindGroupExhausted,
		Detail: fmt.Sprintf("all %d scheduling group slots in use", max),
		Shard:  -1,
	}
}

// FactoryFailed creates an error for a service factory failure during start
func FactoryFailed(shard int, cause error) *Error {
	return &Error{
		Phase:  PhaseService,
		Kind:   KindFactoryFailed,
		Detail: "service factory failed",
		Cause:  cause,
		Shard:  shard,
	}
}

// NotRunning creates an error for runtime-dependent calls outside a runtime
func NotRunning(what string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindNotRunning,
		Detail: fmt.Sprintf("%s requires a running shard runtime", what),
		Shard:  -1,
	}
}

// AlreadyRunning creates an error for starting a second app in one process
func AlreadyRunning() *Error {
	return &Error{
		Phase:  PhaseApp,
		Kind:   KindAlreadyRunning,
		Detail: "another app is already running in this process",
		Shard:  -1,
	}
}

// Allocation creates an error for closure marshalling failures
func Allocation(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %s", what),
		Shard:  -1,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Shard:  -1,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
		Shard:  -1,
	}
}

// Shutdown creates an error for work rejected by a stopping runtime
func Shutdown(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindShutdown,
		Detail: detail,
		Shard:  -1,
	}
}

// Contract creates a contract violation error
func Contract(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindContractViolation,
		Detail: detail,
		Shard:  -1,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
		Shard:  -1,
	}
}
