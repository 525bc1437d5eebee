package future

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/wippyai/shard-runtime/errors"
)

func TestFuture_CompleteThenAwait(t *testing.T) {
	p, f := New[int]()

	if err := p.Complete(42); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
	if f.State() != Ready {
		t.Fatalf("expected Ready, got %v", f.State())
	}
}

func TestFuture_AwaitThenComplete(t *testing.T) {
	p, f := New[string]()

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := f.Await(context.Background())
		if err != nil {
			t.Errorf("Await failed: %v", err)
		}
		if v != "hello" {
			t.Errorf("expected 'hello', got %q", v)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	if err := p.Complete("hello"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	<-done
}

func TestFuture_DoubleResolve(t *testing.T) {
	p, _ := New[int]()
	p.Complete(1)

	err := p.Complete(2)
	if err == nil {
		t.Fatal("expected second Complete to fail")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseFuture, Kind: errors.KindDoubleResolve}) {
		t.Fatalf("expected double resolve error, got %v", err)
	}

	if err := p.Fail(fmt.Errorf("late")); err == nil {
		t.Fatal("expected Fail after Complete to fail")
	}
}

func TestFuture_Fail(t *testing.T) {
	boom := fmt.Errorf("boom")
	p, f := New[int]()
	p.Fail(boom)

	_, err := f.Await(context.Background())
	if !stderrors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if f.State() != Failed {
		t.Fatalf("expected Failed, got %v", f.State())
	}
}

func TestFuture_CancelDiscardsLateResult(t *testing.T) {
	p, f := New[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.State() != Cancelled {
		t.Fatalf("expected Cancelled, got %v", f.State())
	}

	// The producer's late result is not a double resolve.
	if err := p.Complete(42); err != nil {
		t.Fatalf("Complete on cancelled future should be silent, got %v", err)
	}
	if f.State() != Cancelled {
		t.Fatal("cancelled is terminal")
	}
}

func TestFuture_TryGet(t *testing.T) {
	p, f := New[int]()

	if _, _, ok := f.TryGet(); ok {
		t.Fatal("TryGet should report pending")
	}

	p.Complete(7)
	v, err, ok := f.TryGet()
	if !ok || err != nil || v != 7 {
		t.Fatalf("expected (7, nil, true), got (%d, %v, %v)", v, err, ok)
	}
}

func TestFuture_OnCompleteBeforeResolve(t *testing.T) {
	p, f := New[int]()

	got := make(chan int, 1)
	f.OnComplete(Inline{}, func(v int, err error) {
		got <- v
	})

	p.Complete(9)
	select {
	case v := <-got:
		if v != 9 {
			t.Fatalf("expected 9, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("continuation never ran")
	}
}

func TestFuture_OnCompleteAfterResolve(t *testing.T) {
	f := Resolved(5)

	var v int
	f.OnComplete(Inline{}, func(got int, err error) { v = got })
	if v != 5 {
		t.Fatalf("expected immediate dispatch with 5, got %d", v)
	}
}

func TestAll_Order(t *testing.T) {
	p0, f0 := New[int]()
	p1, f1 := New[int]()
	p2, f2 := New[int]()

	all := All(f0, f1, f2)

	// Resolve out of order; results stay input-ordered.
	p2.Complete(2)
	p0.Complete(0)
	p1.Complete(1)

	vs, err := all.Await(context.Background())
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	for i, v := range vs {
		if v != i {
			t.Fatalf("expected results[%d] == %d, got %d", i, i, v)
		}
	}
}

func TestAll_FirstFailureWins(t *testing.T) {
	p0, f0 := New[int]()
	p1, f1 := New[int]()

	all := All(f0, f1)

	errA := fmt.Errorf("a")
	errB := fmt.Errorf("b")
	p1.Fail(errB)
	p0.Fail(errA)

	_, err := all.Await(context.Background())
	if !stderrors.Is(err, errA) {
		t.Fatalf("expected lowest-indexed failure, got %v", err)
	}
}

func TestAll_Empty(t *testing.T) {
	vs, err := All[int]().Await(context.Background())
	if err != nil || len(vs) != 0 {
		t.Fatalf("expected empty success, got (%v, %v)", vs, err)
	}
}

func TestRejected(t *testing.T) {
	boom := fmt.Errorf("boom")
	if _, err := Rejected[int](boom).Await(context.Background()); !stderrors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
