package transport

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestArbiterStreamingThenFallback(t *testing.T) {
	a := NewArbiter()
	if a.State() != StateIdle || a.Active() != KindNone {
		t.Fatalf("new arbiter: %v %q", a.State(), a.Active())
	}
	if !a.Connecting() || !a.Connected() {
		t.Fatal("idle -> connecting -> streaming_active failed")
	}
	if a.Active() != KindStreaming {
		t.Fatalf("Active() = %q", a.Active())
	}
	if !a.Degrade() {
		t.Fatal("first Degrade = false")
	}
	if a.State() != StateDegraded || a.Active() != KindFallback {
		t.Fatalf("after Degrade: %v %q", a.State(), a.Active())
	}
	if a.Degrade() {
		t.Error("second Degrade = true")
	}
	if a.Connected() {
		t.Error("streaming regained authority after fallback")
	}
	if !a.Close() || a.Close() {
		t.Error("Close should report true exactly once")
	}
	if a.Degrade() {
		t.Error("Degrade after Close = true")
	}
}

func TestArbiterDegradeOnce(t *testing.T) {
	a := NewArbiter()
	a.Connecting()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a.Degrade() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := wins.Load(); n != 1 {
		t.Fatalf("Degrade won %d times, want 1", n)
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		StateIdle:            "idle",
		StateConnecting:      "connecting",
		StateStreamingActive: "streaming_active",
		StateDegraded:        "degraded",
		StateClosed:          "closed",
	}
	for s, w := range want {
		if s.String() != w {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), w)
		}
	}
}
