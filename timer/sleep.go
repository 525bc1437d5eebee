package timer

import (
	"context"
	"time"

	"github.com/wippyai/shard-runtime/clock"
	"github.com/wippyai/shard-runtime/closure"
	"github.com/wippyai/shard-runtime/errors"
	"github.com/wippyai/shard-runtime/future"
	"github.com/wippyai/shard-runtime/shard"
)

// Sleep blocks until d has elapsed on svc's clock or ctx is done.
func Sleep(ctx context.Context, svc *Service, d time.Duration) error {
	p, f := future.New[future.Void]()
	c, err := closure.OfVoid(func() {
		p.Complete(future.Void{})
	})
	if err != nil {
		return err
	}

	t := New(svc, c)
	t.Arm(d)
	_, err = f.Await(ctx)
	t.Release()
	return err
}

type svcKey struct {
	clk clock.Clock
}

// ForShard returns the calling shard's timer service for clk, creating
// it on first use. Each shard keeps one service per clock, so timers
// always fire as tasks on the shard that armed them.
func ForShard(ctx context.Context, clk clock.Clock) (*Service, error) {
	s, ok := shard.FromContext(ctx)
	if !ok {
		return nil, errors.NotRunning("shard timer service")
	}

	key := svcKey{clk: clk}
	if v, ok := s.Local(key); ok {
		return v.(*Service), nil
	}
	svc := NewService(clk, s)
	s.SetLocal(key, svc)
	return svc, nil
}
