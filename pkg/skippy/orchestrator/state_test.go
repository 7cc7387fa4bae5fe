package orchestrator

import (
	"testing"
	"time"
)

func TestAbortRegistrySetCheckClearsOnRead(t *testing.T) {
	reg := NewAbortRegistry()
	if reg.Check("general") {
		t.Fatal("expected no pending abort before Set")
	}
	reg.Set("general")
	if !reg.Check("general") {
		t.Fatal("expected pending abort after Set")
	}
	if reg.Check("general") {
		t.Fatal("expected abort flag consumed by first Check")
	}
}

func TestAbortRegistryPerChannel(t *testing.T) {
	reg := NewAbortRegistry()
	reg.Set("a")
	if reg.Check("b") {
		t.Fatal("abort on channel a must not affect channel b")
	}
	if !reg.Check("a") {
		t.Fatal("expected channel a's abort to still be pending")
	}
}

func TestContinuationStoreSaveTakeDiscard(t *testing.T) {
	store := NewContinuationStore()
	if _, ok := store.Take("c1"); ok {
		t.Fatal("expected no pending continuation initially")
	}

	pc := &PendingContinuation{Channel: "c1", IterationsUsed: 25, SavedAt: time.Now()}
	store.Save(pc)

	got, ok := store.Take("c1")
	if !ok || got.IterationsUsed != 25 {
		t.Fatalf("expected saved continuation, got %+v, ok=%v", got, ok)
	}
	if _, ok := store.Take("c1"); ok {
		t.Fatal("expected continuation consumed after Take")
	}

	store.Save(&PendingContinuation{Channel: "c2"})
	store.Discard("c2")
	if _, ok := store.Take("c2"); ok {
		t.Fatal("expected discarded continuation to be gone")
	}
}

func TestContinuationStoreReplacesAtomically(t *testing.T) {
	store := NewContinuationStore()
	store.Save(&PendingContinuation{Channel: "c1", IterationsUsed: 10})
	store.Save(&PendingContinuation{Channel: "c1", IterationsUsed: 20})

	got, ok := store.Take("c1")
	if !ok || got.IterationsUsed != 20 {
		t.Fatalf("expected latest save to win, got %+v", got)
	}
}

func TestIsAffirmative(t *testing.T) {
	cases := map[string]bool{
		"yes":        true,
		"Yes.":       true,
		"  continue": true,
		"go ahead":   true,
		"nope":       false,
		"yesterday":  false,
	}
	for in, want := range cases {
		if got := IsAffirmative(in); got != want {
			t.Errorf("IsAffirmative(%q) = %v, want %v", in, got, want)
		}
	}
}
