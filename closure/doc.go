// Package closure implements the opaque closure contract used to move
// caller-owned units of work across the runtime boundary.
//
// A Closure is a payload handle plus an invoke function and a drop
// function. The side that currently owns the closure commits to calling
// drop exactly once, on every path, whether or not invoke ever ran.
//
// The Table maps handles to payloads, playing the role a raw pointer
// plays on a native boundary. Callback adds move semantics on top of a
// Closure: moving invalidates the source, and only a valid terminal
// instance drops, which rules out double-free and leak at once.
package closure
