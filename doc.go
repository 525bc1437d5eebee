// Package shardruntime is a per-core cooperative runtime bridge: a
// fixed set of shards with serialized task queues, one-shot futures
// connecting callers to shard-side work, timers over steady, lowres,
// and manual clocks, and distributed services holding one instance per
// shard.
//
// The importable pieces live in the subpackages: closure, future,
// clock, timer, shard, distributed, app, guest, logger, and metrics.
package shardruntime
