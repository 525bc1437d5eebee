// Package clock provides the runtime's monotonic time sources: a
// high-resolution steady clock, a low-overhead clock with 10ms
// granularity, and a manual clock for deterministic tests.
//
// All three share one representation: an Instant is nanoseconds from
// the clock's epoch, so conversions to and from raw integers are exact
// across the full int64 range.
package clock
