package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_AllowsUpToLimitThenBlocks(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "session-1", 3, time.Hour)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("Allow() attempt %d = blocked, want allowed", i+1)
		}
	}

	res, err := l.Allow(ctx, "session-1", 3, time.Hour)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if res.Allowed {
		t.Error("Allow() 4th attempt within the window = allowed, want blocked")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Allow(ctx, "session-a", 3, time.Hour); err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
	}

	res, err := l.Allow(ctx, "session-b", 3, time.Hour)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !res.Allowed {
		t.Error("Allow() for an unrelated key = blocked, want allowed")
	}
}

func TestMemoryLimiter_WindowExpiresOldHits(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	if _, err := l.Allow(ctx, "session-1", 1, 10*time.Millisecond); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	res, err := l.Allow(ctx, "session-1", 1, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if res.Allowed {
		t.Fatal("Allow() immediately after hitting limit = allowed, want blocked")
	}

	time.Sleep(20 * time.Millisecond)
	res, err = l.Allow(ctx, "session-1", 1, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !res.Allowed {
		t.Error("Allow() after the window elapsed = blocked, want allowed")
	}
}
