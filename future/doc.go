// Package future provides the one-shot promise/future pair used to
// carry results between shards and back to blocking callers.
//
// A future resolves exactly once: Ready with a value, Failed with an
// error, or Cancelled when the awaiting side gives up first. Waiters
// either block in Await or register continuations with OnComplete; a
// continuation runs on the Executor it was registered with, which is
// how results re-enter a shard's task queue instead of running on the
// producer's goroutine.
package future
