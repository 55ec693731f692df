package sched

import "testing"

const (
	evTick Events = 1 << iota
	evSample
	evLight
	evLinkDone
)

func TestPostWithdrawPending(t *testing.T) {
	s := New()
	if s.Pending() != 0 {
		t.Fatalf("fresh scheduler pending = %#x, want 0", s.Pending())
	}

	s.Post(evTick)
	s.Post(evLight)
	if got := s.Pending(); got != evTick|evLight {
		t.Fatalf("pending = %#x, want %#x", got, evTick|evLight)
	}

	s.Withdraw(evTick)
	if got := s.Pending(); got != evLight {
		t.Fatalf("after withdraw pending = %#x, want %#x", got, evLight)
	}

	// Withdrawing a clear bit is a no-op.
	s.Withdraw(evSample)
	if got := s.Pending(); got != evLight {
		t.Fatalf("withdraw of clear bit changed pending to %#x", got)
	}
}

func TestPostIsIdempotent(t *testing.T) {
	s := New()
	s.Post(evSample)
	s.Post(evSample)
	if got := s.Pending(); got != evSample {
		t.Fatalf("pending = %#x, want %#x", got, evSample)
	}
	// One claim drains both posts: no double counting.
	if !s.Claim(evSample) {
		t.Fatal("claim of posted event failed")
	}
	if s.Claim(evSample) {
		t.Fatal("second claim succeeded, event was double counted")
	}
}

func TestClaimServicesExactlyOncePerPost(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		s.Post(evLinkDone)
		if !s.Claim(evLinkDone) {
			t.Fatalf("post %d: claim failed", i)
		}
		if s.Claim(evLinkDone) {
			t.Fatalf("post %d: claimed twice", i)
		}
	}
}

func TestClaimOfUnsetBit(t *testing.T) {
	s := New()
	s.Post(evTick)
	if s.Claim(evLight) {
		t.Fatal("claimed a bit that was never posted")
	}
	if got := s.Pending(); got != evTick {
		t.Fatalf("failed claim mutated pending to %#x", got)
	}
}

// The pending set always equals the accumulated history of posts and
// claims, for an arbitrary interleaving.
func TestHistoryAccumulation(t *testing.T) {
	s := New()
	var model Events

	step := func(op func(), upd func(Events) Events) {
		op()
		model = upd(model)
		if got := s.Pending(); got != model {
			t.Fatalf("pending = %#x, model = %#x", got, model)
		}
	}

	step(func() { s.Post(evTick) }, func(m Events) Events { return m | evTick })
	step(func() { s.Post(evSample | evLight) }, func(m Events) Events { return m | evSample | evLight })
	step(func() { s.Claim(evSample) }, func(m Events) Events { return m &^ evSample })
	step(func() { s.Post(evSample) }, func(m Events) Events { return m | evSample })
	step(func() { s.Withdraw(evTick) }, func(m Events) Events { return m &^ evTick })
	step(func() { s.Claim(evLight) }, func(m Events) Events { return m &^ evLight })
	step(func() { s.Claim(evSample) }, func(m Events) Events { return m &^ evSample })

	if model != 0 || s.Pending() != 0 {
		t.Fatalf("expected drained scheduler, pending = %#x", s.Pending())
	}
}
