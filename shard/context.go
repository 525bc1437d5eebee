package shard

import (
	"context"

	"github.com/wippyai/shard-runtime/errors"
)

type ctxKey int

const shardKey ctxKey = iota

func withShard(ctx context.Context, s *Shard) context.Context {
	return context.WithValue(ctx, shardKey, s)
}

func fromContext(ctx context.Context) (*Shard, bool) {
	s, ok := ctx.Value(shardKey).(*Shard)
	return s, ok
}

// FromContext returns the shard the calling task is running on.
func FromContext(ctx context.Context) (*Shard, bool) {
	return fromContext(ctx)
}

// ThisShardID returns the index of the shard the calling task runs on.
func ThisShardID(ctx context.Context) (int, error) {
	s, ok := fromContext(ctx)
	if !ok {
		return 0, errors.NotRunning("this_shard_id")
	}
	return s.id, nil
}

// Ready reports whether the calling goroutine is inside a running
// shard task. Runtime-dependent APIs may be called only when this
// returns true.
func Ready(ctx context.Context) bool {
	s, ok := fromContext(ctx)
	return ok && s.rt.running()
}

// AssertRunning returns an error unless the calling goroutine is
// inside a running shard task.
func AssertRunning(ctx context.Context) error {
	if !Ready(ctx) {
		return errors.NotRunning("runtime-dependent call")
	}
	return nil
}

// NeedPreempt reports whether the calling task should yield: it is
// true when other tasks are waiting on this shard's queue. Long-running
// tasks poll it and break up their work with Spawn.
func NeedPreempt(ctx context.Context) bool {
	s, ok := fromContext(ctx)
	if !ok {
		return false
	}
	return len(s.tasks) > 0
}
