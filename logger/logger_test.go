package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observedBase(t *testing.T) (*observer.ObservedLogs, func()) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	SetBase(zap.New(core))
	return logs, func() { SetBase(nil) }
}

func TestNamed_SharedInstance(t *testing.T) {
	a := Named("shard")
	b := Named("shard")
	if a != b {
		t.Fatal("same name must return the same logger")
	}
	if a.Name() != "shard" {
		t.Fatalf("expected name 'shard', got %q", a.Name())
	}
}

func TestLevel_Threshold(t *testing.T) {
	logs, restore := observedBase(t)
	defer restore()

	l := Named("threshold-test")
	l.SetLevel(LevelWarn)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Debug("d")
	l.Trace("t")

	if got := logs.Len(); got != 2 {
		t.Fatalf("expected 2 records past a warn threshold, got %d", got)
	}
}

func TestTrace_EmitsAtDebugWithMarker(t *testing.T) {
	logs, restore := observedBase(t)
	defer restore()

	l := Named("trace-test")
	l.SetLevel(LevelTrace)
	l.Trace("deep detail")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 record, got %d", len(entries))
	}
	if entries[0].Level != zap.DebugLevel {
		t.Fatalf("expected debug level, got %v", entries[0].Level)
	}
	fields := entries[0].ContextMap()
	if v, ok := fields["trace"]; !ok || v != true {
		t.Fatal("expected trace marker field")
	}
}

func TestSetBase_RewiresExistingLoggers(t *testing.T) {
	l := Named("rewire-test")

	core, logs := observer.New(zap.DebugLevel)
	SetBase(zap.New(core))
	defer SetBase(nil)

	l.Info("after rewire")
	if logs.Len() != 1 {
		t.Fatal("existing logger must write to the new base")
	}
	if logs.All()[0].LoggerName != "rewire-test" {
		t.Fatalf("expected logger name on record, got %q", logs.All()[0].LoggerName)
	}
}

func TestEnabled(t *testing.T) {
	l := Named("enabled-test")
	l.SetLevel(LevelInfo)

	if !l.Enabled(LevelError) || !l.Enabled(LevelInfo) {
		t.Fatal("coarser-or-equal levels must be enabled")
	}
	if l.Enabled(LevelDebug) || l.Enabled(LevelTrace) {
		t.Fatal("finer levels must be disabled")
	}
}
