// Package ratelimit implements the rolling-window counters behind the
// generation rate limits: a small budget per anonymous session over a long
// window, a larger hourly budget per authenticated user, counted only on a
// generation cache miss.
//
// A process-local implementation (timestamp slice per key) covers
// single-instance deployments; a Redis-backed one covers clusters, the same
// split internal/lock uses for the generation lock.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result reports the outcome of one Allow check.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter counts events against a per-key rolling window.
type Limiter interface {
	// Allow records one attempt for key and reports whether it falls within
	// limit occurrences per window, counting backward from now.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// memoryLimiter is an in-process fallback, keyed by a mutex-guarded map of
// timestamp slices.
type memoryLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemory returns a process-local Limiter.
func NewMemory() Limiter {
	return &memoryLimiter{hits: make(map[string][]time.Time)}
}

func (l *memoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	existing := l.hits[key]
	kept := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		retryAfter := kept[0].Add(window).Sub(now)
		l.hits[key] = kept
		return Result{Allowed: false, RetryAfter: retryAfter}, nil
	}

	l.hits[key] = append(kept, now)
	return Result{Allowed: true}, nil
}

// redisLimiter uses a per-key sorted set (score = unix nanos) so the window
// is shared across every instance of the service.
type redisLimiter struct {
	client *redis.Client
}

// NewRedis returns a cluster-wide Limiter backed by client.
func NewRedis(client *redis.Client) Limiter {
	return &redisLimiter{client: client}
}

func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	redisKey := "ratelimit:" + key
	now := time.Now()
	cutoff := now.Add(-window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", cutoff.UnixNano()))
	card := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit read: %w", err)
	}

	count, err := card.Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit count: %w", err)
	}
	if int(count) >= limit {
		retryAfter := window
		if members, err := oldest.Result(); err == nil && len(members) == 1 {
			oldestAt := time.Unix(0, int64(members[0].Score))
			retryAfter = oldestAt.Add(window).Sub(now)
		}
		return Result{Allowed: false, RetryAfter: retryAfter}, nil
	}

	member := redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()}
	if err := l.client.ZAdd(ctx, redisKey, member).Err(); err != nil {
		return Result{}, fmt.Errorf("ratelimit write: %w", err)
	}
	l.client.Expire(ctx, redisKey, window)

	return Result{Allowed: true}, nil
}
