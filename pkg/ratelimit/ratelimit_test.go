package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 0)
	defer l.Stop()

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("unlimited limiter should not block, took %v", elapsed)
	}
}

func TestLimiter_Paces(t *testing.T) {
	// 50 rps = 20ms interval
	l := NewLimiter(50, 0)
	defer l.Stop()

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Three waits against a 20ms ticker should take at least ~40ms
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("expected pacing of at least 40ms, took %v", elapsed)
	}
}

func TestLimiter_ContextCancel(t *testing.T) {
	l := NewLimiter(0.1, 0) // 10s interval, will not tick during the test
	defer l.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected context error, got nil")
	}
}

func TestNewLimiter_ClampsJitter(t *testing.T) {
	l := NewLimiter(100, 5.0)
	defer l.Stop()
	if l.jitter != 1 {
		t.Errorf("expected jitter clamped to 1, got %f", l.jitter)
	}

	l2 := NewLimiter(100, -1)
	defer l2.Stop()
	if l2.jitter != 0 {
		t.Errorf("expected jitter clamped to 0, got %f", l2.jitter)
	}
}
