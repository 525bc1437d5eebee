package closure

import (
	"context"
	"errors"
	"testing"

	rterrors "github.com/wippyai/shard-runtime/errors"
)

func countingClosure(t *testing.T, tbl *Table, calls, drops *int) Closure {
	t.Helper()
	h, err := tbl.Register("payload")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return Closure{
		Payload: h,
		Invoke: func(ctx context.Context, payload Handle) (any, error) {
			*calls++
			return nil, nil
		},
		Drop: func(payload Handle) {
			*drops++
			tbl.Drop(payload)
		},
	}
}

func TestCallback_DropExactlyOnce(t *testing.T) {
	tbl := NewTable()
	var calls, drops int

	cb := NewCallback(countingClosure(t, tbl, &calls, &drops))
	cb.Release()
	cb.Release()

	if drops != 1 {
		t.Fatalf("expected exactly one drop, got %d", drops)
	}
	if tbl.Len() != 0 {
		t.Fatal("payload should be gone from table")
	}
}

func TestCallback_MoveChain(t *testing.T) {
	tbl := NewTable()
	var calls, drops int

	// Move through several owners; only the terminal release drops.
	a := NewCallback(countingClosure(t, tbl, &calls, &drops))
	b := a.Move()
	c := b.Move()

	a.Release()
	b.Release()
	if drops != 0 {
		t.Fatalf("moved-from instances must not drop, got %d drops", drops)
	}

	if a.Valid() || b.Valid() {
		t.Fatal("moved-from instances must be invalid")
	}
	if !c.Valid() {
		t.Fatal("moved-to instance must be valid")
	}

	c.Release()
	if drops != 1 {
		t.Fatalf("expected exactly one drop across the whole chain, got %d", drops)
	}
}

func TestCallback_CallRepeatable(t *testing.T) {
	tbl := NewTable()
	var calls, drops int

	cb := NewCallback(countingClosure(t, tbl, &calls, &drops))

	for i := 0; i < 3; i++ {
		if _, err := cb.Call(context.Background()); err != nil {
			t.Fatalf("Call %d failed: %v", i, err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if !cb.Valid() {
		t.Fatal("Call must not invalidate the callback")
	}

	cb.Release()
	if drops != 1 {
		t.Fatalf("expected one drop, got %d", drops)
	}
}

func TestCallback_CallAfterMoveIsContractViolation(t *testing.T) {
	tbl := NewTable()
	var calls, drops int

	a := NewCallback(countingClosure(t, tbl, &calls, &drops))
	b := a.Move()
	defer b.Release()

	_, err := a.Call(context.Background())
	if err == nil {
		t.Fatal("expected call through moved-from instance to fail")
	}
	if !errors.Is(err, &rterrors.Error{Phase: rterrors.PhaseClosure, Kind: rterrors.KindContractViolation}) {
		t.Fatalf("expected contract violation, got %v", err)
	}
	if calls != 0 {
		t.Fatal("invoke must not run through an invalidated callback")
	}
}

func TestFunc_ReleaseWithoutInvoke(t *testing.T) {
	tbl := NewTable()

	ran := false
	c, err := Func(tbl, func(ctx context.Context) (any, error) {
		ran = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Func failed: %v", err)
	}

	// The owning side decided never to invoke; drop still runs.
	c.Release()
	if ran {
		t.Fatal("invoke must not run on release")
	}
	if tbl.Len() != 0 {
		t.Fatal("payload must be released")
	}
}

func TestOfVoid_InvokeThenRelease(t *testing.T) {
	count := 0
	c, err := OfVoid(func() { count++ })
	if err != nil {
		t.Fatalf("OfVoid failed: %v", err)
	}

	cb := NewCallback(c)
	if _, err := cb.Call(context.Background()); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	cb.Release()

	if count != 1 {
		t.Fatalf("expected 1 invocation, got %d", count)
	}
}
