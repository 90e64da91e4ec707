package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestAllowEnforcesPerUserLimit(t *testing.T) {
	lim := New(3)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lim.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		if !lim.Allow(1) {
			t.Fatalf("expected event %d to be allowed", i+1)
		}
	}
	if lim.Allow(1) {
		t.Fatalf("expected fourth event in the same minute to be rejected")
	}
	if !lim.Allow(2) {
		t.Fatalf("expected other users to be unaffected")
	}
}

func TestAllowRecoversAfterWindow(t *testing.T) {
	lim := New(1)
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lim.now = func() time.Time { return current }

	if !lim.Allow(1) {
		t.Fatalf("expected first event to be allowed")
	}
	if lim.Allow(1) {
		t.Fatalf("expected second event to be rejected")
	}

	current = current.Add(2*time.Minute + time.Second)
	if !lim.Allow(1) {
		t.Fatalf("expected event after two windows to be allowed")
	}
}

func TestZeroLimitDisables(t *testing.T) {
	lim := New(0)
	for i := 0; i < 100; i++ {
		if !lim.Allow(1) {
			t.Fatalf("expected disabled limiter to allow everything")
		}
	}
	if lim.Tracked() != 0 {
		t.Fatalf("expected disabled limiter to track nobody")
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow(1) {
		t.Fatalf("expected nil limiter to allow")
	}
}

func TestCapacityBoundsMemory(t *testing.T) {
	lim := newLimiter(5, 10, time.Minute)

	for id := int64(0); id < 100; id++ {
		lim.Allow(id)
	}
	if got := lim.Tracked(); got != 10 {
		t.Fatalf("expected at most 10 tracked users, got %d", got)
	}
}

func TestAllowIsConcurrencySafe(t *testing.T) {
	lim := New(50)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Allow(7) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Fatalf("expected exactly 50 allowed events, got %d", allowed)
	}
}
