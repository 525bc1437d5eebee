package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wippyai/shard-runtime/future"
	"github.com/wippyai/shard-runtime/shard"
)

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

func TestCollector_MetricCount(t *testing.T) {
	rt := startRuntime(t, 2)
	c := NewRuntimeCollector(rt)

	// One runtime gauge plus four series per shard.
	if got := testutil.CollectAndCount(c); got != 1+4*2 {
		t.Fatalf("expected 9 metrics, got %d", got)
	}
}

func TestCollector_CountsExecutedTasks(t *testing.T) {
	rt := startRuntime(t, 1)

	for i := 0; i < 3; i++ {
		if _, err := shard.Submit(rt, 0, func(ctx context.Context) (future.Void, error) {
			return future.Void{}, nil
		}).Await(context.Background()); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(NewRuntimeCollector(rt)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() != "runtime_shard_tasks_executed_total" {
			continue
		}
		found = true
		if v := f.GetMetric()[0].GetCounter().GetValue(); v < 3 {
			t.Fatalf("expected at least 3 executed tasks, got %v", v)
		}
	}
	if !found {
		t.Fatal("executed-tasks metric missing")
	}
}

func TestCollector_Lint(t *testing.T) {
	rt := startRuntime(t, 1)

	problems, err := testutil.CollectAndLint(NewRuntimeCollector(rt))
	if err != nil {
		t.Fatalf("CollectAndLint failed: %v", err)
	}
	for _, p := range problems {
		if strings.Contains(p.Text, "help") {
			continue
		}
		t.Errorf("lint problem on %s: %s", p.Metric, p.Text)
	}
}
