package sessions

import (
	"context"
	"testing"
	"time"
)

func TestRegisterAndCount(t *testing.T) {
	tr := NewTracker()
	if tr.Count() != 0 {
		t.Fatalf("Count = %d, want 0", tr.Count())
	}

	un1 := tr.Register("a", Handle{})
	un2 := tr.Register("b", Handle{})
	if tr.Count() != 2 {
		t.Fatalf("Count = %d, want 2", tr.Count())
	}

	un1()
	un1() // double unregister is a no-op
	if tr.Count() != 1 {
		t.Fatalf("Count = %d, want 1", tr.Count())
	}
	un2()
	if tr.Count() != 0 {
		t.Fatalf("Count = %d, want 0", tr.Count())
	}
}

func TestRegisterSameIDReplaces(t *testing.T) {
	tr := NewTracker()
	tr.Register("a", Handle{})
	un2 := tr.Register("a", Handle{})

	if tr.Count() != 1 {
		t.Fatalf("Count = %d, want 1", tr.Count())
	}
	un2()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !tr.Wait(ctx) {
		t.Fatal("Wait did not drain after replacement")
	}
}

func TestWarnAllAndCancelAll(t *testing.T) {
	tr := NewTracker()

	var warned []string
	canceled := 0
	tr.Register("a", Handle{
		Warn:   func(msg string) error { warned = append(warned, msg); return nil },
		Cancel: func() { canceled++ },
	})
	tr.Register("b", Handle{
		Cancel: func() { canceled++ },
	})

	if got := tr.WarnAll("draining"); got != 1 {
		t.Fatalf("WarnAll = %d, want 1", got)
	}
	if len(warned) != 1 || warned[0] != "draining" {
		t.Fatalf("warned = %v", warned)
	}
	if got := tr.CancelAll(); got != 2 {
		t.Fatalf("CancelAll = %d, want 2", got)
	}
	if canceled != 2 {
		t.Fatalf("canceled = %d, want 2", canceled)
	}
}

func TestWaitTimesOut(t *testing.T) {
	tr := NewTracker()
	un := tr.Register("a", Handle{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if tr.Wait(ctx) {
		t.Fatal("Wait reported drained while a session is registered")
	}

	un()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if !tr.Wait(ctx2) {
		t.Fatal("Wait did not drain after unregister")
	}
}

func TestNilTrackerIsNoOp(t *testing.T) {
	var tr *Tracker
	un := tr.Register("a", Handle{})
	un()
	if tr.Count() != 0 || tr.WarnAll("x") != 0 || tr.CancelAll() != 0 {
		t.Fatal("nil tracker should be inert")
	}
	if !tr.Wait(context.Background()) {
		t.Fatal("nil tracker Wait should return true")
	}
}
