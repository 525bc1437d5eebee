package shard

import (
	"context"
	"testing"
	"time"
)

func TestGate_EnterLeave(t *testing.T) {
	var g Gate

	if err := g.Enter(); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	if g.Count() != 1 {
		t.Fatalf("expected count 1, got %d", g.Count())
	}
	g.Leave()
	if g.Count() != 0 {
		t.Fatalf("expected count 0, got %d", g.Count())
	}
}

func TestGate_CloseEmpty(t *testing.T) {
	var g Gate

	if err := g.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := g.Enter(); err == nil {
		t.Fatal("expected Enter after Close to fail")
	}
}

func TestGate_CloseWaitsForLeave(t *testing.T) {
	var g Gate

	if err := g.Enter(); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}

	closed := make(chan error, 1)
	go func() {
		closed <- g.Close(context.Background())
	}()

	select {
	case <-closed:
		t.Fatal("Close returned before the last unit left")
	case <-time.After(20 * time.Millisecond):
	}

	g.Leave()
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close never returned")
	}
}

func TestGate_CloseContextExpiry(t *testing.T) {
	var g Gate
	g.Enter()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := g.Close(ctx); err == nil {
		t.Fatal("expected Close to fail when the unit never leaves")
	}
}
