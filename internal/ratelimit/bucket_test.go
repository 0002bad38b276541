package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucket_CapacityThenRefill(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	b := NewTokenBucket(10, time.Minute).WithClock(clock.Now)

	for i := 1; i <= 10; i++ {
		if !b.Admit(ctx, "u1") {
			t.Fatalf("call %d rejected, want admitted", i)
		}
	}
	if b.Admit(ctx, "u1") {
		t.Fatal("11th call admitted, want rejected")
	}

	// One token every 6s
	clock.Advance(6 * time.Second)
	if !b.Admit(ctx, "u1") {
		t.Fatal("call after one refill interval rejected")
	}
	if b.Admit(ctx, "u1") {
		t.Fatal("only one token should have refilled")
	}
}

func TestTokenBucket_NoBoundaryBurst(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	b := NewTokenBucket(10, time.Minute).WithClock(clock.Now)

	// Drain at the end of one minute, then immediately try again.
	clock.Advance(59 * time.Second)
	admitted := 0
	for i := 0; i < 10; i++ {
		if b.Admit(ctx, "u1") {
			admitted++
		}
	}
	clock.Advance(2 * time.Second)
	for i := 0; i < 10; i++ {
		if b.Admit(ctx, "u1") {
			admitted++
		}
	}

	if admitted > 10 {
		t.Errorf("admitted %d across the boundary, want at most 10", admitted)
	}
}

func TestTokenBucket_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	b := NewTokenBucket(2, time.Minute).WithClock(clock.Now)

	b.Admit(ctx, "idle")
	b.Admit(ctx, "idle")
	clock.Advance(30 * time.Second)
	b.Admit(ctx, "busy")
	b.Admit(ctx, "busy")
	clock.Advance(30 * time.Second)

	// idle has refilled both tokens; busy has one of two.
	if removed := b.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
	if !b.Admit(ctx, "busy") {
		t.Error("busy should have one refilled token")
	}
	if b.Admit(ctx, "busy") {
		t.Error("busy should keep its partial state across a sweep")
	}
	if !b.Admit(ctx, "idle") || !b.Admit(ctx, "idle") {
		t.Error("swept identity should get a full bucket")
	}
}

func TestTokenBucket_StartCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := newFakeClock()
	b := NewTokenBucket(1, time.Millisecond).WithClock(clock.Now)

	b.Admit(ctx, "u1")
	clock.Advance(time.Second)
	b.StartCleanup(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for b.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleanup did not sweep the refilled bucket")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
