package distributed

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wippyai/shard-runtime/closure"
	"github.com/wippyai/shard-runtime/errors"
	"github.com/wippyai/shard-runtime/future"
	"github.com/wippyai/shard-runtime/shard"
)

// counter is the classic per-shard counting service: every instance
// owns its shard's count and is only touched from that shard.
type counter struct {
	shard   int
	count   int
	stopped *atomic.Int32
}

func (c *counter) Increment(ctx context.Context) (int, error) {
	c.count++
	return c.count, nil
}

func (c *counter) Stop(ctx context.Context) error {
	c.stopped.Add(1)
	return nil
}

func startRuntime(t *testing.T, count int) *shard.Runtime {
	t.Helper()
	rt, err := shard.NewRuntime(count)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rt.Stop(ctx)
	})
	return rt
}

func startCounters(t *testing.T, rt *shard.Runtime, stopped *atomic.Int32) *Distributed[*counter] {
	t.Helper()
	d, err := Start(context.Background(), rt, func(ctx context.Context) (*counter, error) {
		id, err := shard.ThisShardID(ctx)
		if err != nil {
			return nil, err
		}
		return &counter{shard: id, stopped: stopped}, nil
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return d
}

func TestStart_OneInstancePerShard(t *testing.T) {
	rt := startRuntime(t, 3)
	var stopped atomic.Int32
	d := startCounters(t, rt, &stopped)
	defer d.Stop(context.Background())

	for i := 0; i < rt.Count(); i++ {
		id, err := MapSingle(context.Background(), d, i, func(ctx context.Context, c *counter) (int, error) {
			return c.shard, nil
		}).Await(context.Background())
		if err != nil {
			t.Fatalf("MapSingle(%d) failed: %v", i, err)
		}
		if id != i {
			t.Fatalf("instance on shard %d reports shard %d", i, id)
		}
	}
}

func TestLocal(t *testing.T) {
	rt := startRuntime(t, 2)
	var stopped atomic.Int32
	d := startCounters(t, rt, &stopped)
	defer d.Stop(context.Background())

	if _, err := d.Local(context.Background()); err == nil {
		t.Fatal("Local outside a shard must fail")
	}

	id, err := shard.Submit(rt, 1, func(ctx context.Context) (int, error) {
		c, err := d.Local(ctx)
		if err != nil {
			return 0, err
		}
		return c.shard, nil
	}).Await(context.Background())
	if err != nil {
		t.Fatalf("Local on shard failed: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected local instance of shard 1, got %d", id)
	}
}

func TestStop_ExactlyOncePerShard(t *testing.T) {
	rt := startRuntime(t, 3)
	var stopped atomic.Int32
	d := startCounters(t, rt, &stopped)

	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := stopped.Load(); got != 3 {
		t.Fatalf("expected 3 stops, got %d", got)
	}

	err := d.Stop(context.Background())
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseService, Kind: errors.KindDoubleStop}) {
		t.Fatalf("expected double stop error, got %v", err)
	}
	if got := stopped.Load(); got != 3 {
		t.Fatalf("double stop must not rerun stops, got %d", got)
	}

	if _, err := MapAll(context.Background(), d, func(ctx context.Context, c *counter) (int, error) {
		return 0, nil
	}).Await(context.Background()); err == nil {
		t.Fatal("expected Map on stopped service to fail")
	}
}

func TestStart_AllOrNothing(t *testing.T) {
	rt := startRuntime(t, 4)
	var stopped atomic.Int32

	_, err := Start(context.Background(), rt, func(ctx context.Context) (*counter, error) {
		id, _ := shard.ThisShardID(ctx)
		if id == 2 {
			return nil, fmt.Errorf("shard 2 says no")
		}
		return &counter{shard: id, stopped: &stopped}, nil
	})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseService, Kind: errors.KindFactoryFailed}) {
		t.Fatalf("expected factory failure, got %v", err)
	}

	// The three constructed instances were rolled back.
	if got := stopped.Load(); got != 3 {
		t.Fatalf("expected 3 rollback stops, got %d", got)
	}
}

func TestStartFromClosure_ReleasedOnce(t *testing.T) {
	rt := startRuntime(t, 2)
	var stopped atomic.Int32

	tbl := closure.NewTable()
	drops := 0
	c, err := closure.Func(tbl, func(ctx context.Context) (any, error) {
		id, err := shard.ThisShardID(ctx)
		if err != nil {
			return nil, err
		}
		return &counter{shard: id, stopped: &stopped}, nil
	})
	if err != nil {
		t.Fatalf("closure.Func failed: %v", err)
	}
	orig := c.Drop
	c.Drop = func(h closure.Handle) {
		drops++
		orig(h)
	}

	d, err := StartFromClosure(context.Background(), rt, c)
	if err != nil {
		t.Fatalf("StartFromClosure failed: %v", err)
	}
	defer d.Stop(context.Background())

	if drops != 1 {
		t.Fatalf("factory closure must be released exactly once, got %d", drops)
	}
	if tbl.Len() != 0 {
		t.Fatal("factory payload must be gone")
	}
}

func TestStartSingle(t *testing.T) {
	rt := startRuntime(t, 3)
	var stopped atomic.Int32

	d, err := StartSingle(context.Background(), rt, func(ctx context.Context) (*counter, error) {
		id, _ := shard.ThisShardID(ctx)
		return &counter{shard: id, stopped: &stopped}, nil
	})
	if err != nil {
		t.Fatalf("StartSingle failed: %v", err)
	}
	defer d.Stop(context.Background())

	// Only shard 0 has an instance; it is reachable from anywhere.
	v, err := MapSingle(context.Background(), d, 0, func(ctx context.Context, c *counter) (int, error) {
		return c.Increment(ctx)
	}).Await(context.Background())
	if err != nil {
		t.Fatalf("MapSingle failed: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}

	_, err = MapSingle(context.Background(), d, 1, func(ctx context.Context, c *counter) (int, error) {
		return 0, nil
	}).Await(context.Background())
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseService, Kind: errors.KindNotFound}) {
		t.Fatalf("expected not found on shard 1, got %v", err)
	}
}

func TestMapAll(t *testing.T) {
	rt := startRuntime(t, 3)
	var stopped atomic.Int32
	d := startCounters(t, rt, &stopped)
	defer d.Stop(context.Background())

	// Bump shard 1 twice so the counts differ.
	for i := 0; i < 2; i++ {
		if _, err := MapSingle(context.Background(), d, 1, func(ctx context.Context, c *counter) (int, error) {
			return c.Increment(ctx)
		}).Await(context.Background()); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	counts, err := MapAll(context.Background(), d, func(ctx context.Context, c *counter) (int, error) {
		return c.count, nil
	}).Await(context.Background())
	if err != nil {
		t.Fatalf("MapAll failed: %v", err)
	}
	want := []int{0, 2, 0}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("expected counts %v, got %v", want, counts)
		}
	}
}

func TestMapOthers(t *testing.T) {
	rt := startRuntime(t, 3)
	var stopped atomic.Int32
	d := startCounters(t, rt, &stopped)
	defer d.Stop(context.Background())

	ids, err := shard.Submit(rt, 1, func(ctx context.Context) ([]int, error) {
		return MapOthers(ctx, d, func(ctx context.Context, c *counter) (int, error) {
			return c.shard, nil
		}).Await(ctx)
	}).Await(context.Background())
	if err != nil {
		t.Fatalf("MapOthers failed: %v", err)
	}

	want := []int{0, 2}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestServiceManagedFromShardTask(t *testing.T) {
	rt := startRuntime(t, 2)
	var stopped atomic.Int32

	// Start and stop entirely from inside a shard task.
	_, err := shard.Submit(rt, 0, func(ctx context.Context) (future.Void, error) {
		d, err := Start(ctx, rt, func(ctx context.Context) (*counter, error) {
			id, _ := shard.ThisShardID(ctx)
			return &counter{shard: id, stopped: &stopped}, nil
		})
		if err != nil {
			return future.Void{}, err
		}
		return future.Void{}, d.Stop(ctx)
	}).Await(context.Background())
	if err != nil {
		t.Fatalf("managing service from shard task failed: %v", err)
	}
	if got := stopped.Load(); got != 2 {
		t.Fatalf("expected 2 stops, got %d", got)
	}
}
