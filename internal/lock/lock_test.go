package lock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var concurrent int32
	var maxConcurrent int32
	const n = 8
	done := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		go func() {
			release, err := l.Acquire(ctx, "fp-shared", time.Second)
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				done <- struct{}{}
				return
			}
			cur := atomic.AddInt32(&concurrent, 1)
			for {
				prev := atomic.LoadInt32(&maxConcurrent)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxConcurrent, prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
			release()
			done <- struct{}{}
		}()
	}

	for i := 0; i < n; i++ {
		<-done
	}

	if maxConcurrent != 1 {
		t.Errorf("max concurrent holders of the same key = %d, want 1", maxConcurrent)
	}
}

func TestLocalLocker_DistinctKeysDoNotBlockEachOther(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "fp-a", time.Second)
	if err != nil {
		t.Fatalf("Acquire(fp-a) error = %v", err)
	}
	defer releaseA()

	acquired := make(chan struct{})
	go func() {
		releaseB, err := l.Acquire(ctx, "fp-b", time.Second)
		if err != nil {
			return
		}
		defer releaseB()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Acquire() on a distinct key blocked on an unrelated held lock")
	}
}

func TestLocalLocker_AcquireRespectsContextCancellation(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "fp-blocked", time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "fp-blocked", time.Second)
	if err == nil {
		t.Fatal("Acquire() on a held lock with a short-lived context succeeded, want context error")
	}
}
