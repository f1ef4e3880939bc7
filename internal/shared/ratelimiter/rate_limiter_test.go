package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestRateLimiter_SpacesCalls checks that consecutive calls are at least interval apart.
func TestRateLimiter_SpacesCalls(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// The first call passes immediately, the next two wait one interval each.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("expected at least ~100ms between three calls, got %v", elapsed)
	}
}

// TestRateLimiter_Disabled checks that a zero interval never waits.
func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected no pacing, took %v", elapsed)
	}
}

// TestRateLimiter_ContextCancelled checks that cancellation aborts the wait.
func TestRateLimiter_ContextCancelled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(time.Hour)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

// TestRateLimiter_DeadlineBeforeSlot checks that a wait which cannot finish
// before the deadline fails at once instead of sleeping.
func TestRateLimiter_DeadlineBeforeSlot(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(time.Hour)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx); err == nil {
		t.Fatal("expected an error")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected an immediate failure, waited %v", elapsed)
	}
}
