// Package shard implements the per-shard execution substrate: a fixed
// set of single-goroutine task queues, cross-shard submission with
// futures, scheduling groups, and shutdown gates.
//
// Every task runs on exactly one shard, sequentially with that shard's
// other tasks. Code running in a task finds its shard through the
// context; the same context carries it into continuations so results
// resolve back where they belong.
package shard
