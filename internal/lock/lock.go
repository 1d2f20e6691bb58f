// Package lock provides a per-key advisory lock for coordinating
// study-guide generation and subscription reconciliation across goroutines
// or, in a clustered deployment, across processes.
//
// When a Redis URL is configured the lock is backed by Redis's SET NX PX
// primitive; otherwise it falls back to an in-process sync.Map-keyed mutex.
// This realizes the process-local-vs-cluster-wide design decision.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker acquires and releases a named advisory lock.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	// The returned release func must be called to free the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// localLocker is an in-process fallback, keyed by a sync.Map of *sync.Mutex.
type localLocker struct {
	mu sync.Map // map[string]*sync.Mutex
}

// NewLocal returns a process-local Locker suitable for single-instance deployments.
func NewLocal() Locker {
	return &localLocker{}
}

func (l *localLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	value, _ := l.mu.LoadOrStore(key, &sync.Mutex{})
	mtx := value.(*sync.Mutex)

	done := make(chan struct{})
	go func() {
		mtx.Lock()
		close(done)
	}()

	select {
	case <-done:
		return mtx.Unlock, nil
	case <-ctx.Done():
		// The goroutine above will still win the mutex eventually; hand it
		// straight back so the key is not wedged for every later caller.
		go func() {
			<-done
			mtx.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// redisLocker is a cluster-wide Locker backed by Redis's SET NX PX.
type redisLocker struct {
	client *redis.Client
}

// NewRedis returns a cluster-wide Locker backed by the given Redis client.
func NewRedis(client *redis.Client) Locker {
	return &redisLocker{client: client}
}

const pollInterval = 50 * time.Millisecond

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lockKey := "lock:" + key
	token := randomToken()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				// Best-effort: only clear the key if we still own it.
				if v, err := l.client.Get(releaseCtx, lockKey).Result(); err == nil && v == token {
					l.client.Del(releaseCtx, lockKey)
				}
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func randomToken() string {
	return uuid.NewString()
}
