// Package timer provides one-shot and periodic timers over the
// runtime's clocks.
//
// A Service owns the schedule for one clock and dispatches fired
// callbacks through a Dispatcher, normally the owning shard. Periodic
// timers rearm from their previous deadline so the cadence never
// drifts, and a manual-clock service fires deterministically inside
// Advance, which is how timer behavior is tested.
package timer
