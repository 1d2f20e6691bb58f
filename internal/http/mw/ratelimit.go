package mw

import (
	"context"
	"time"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/ratelimit"
)

// GenerationRateLimiter enforces the generation-miss-only rate limits:
// anonymous sessions get AnonLimit per AnonWindow, authenticated
// users get StandardLimit per StandardWindow. It is invoked directly by the
// generation handler after a cache miss is known, not as chi middleware,
// since a cache hit must never count against the limit.
type GenerationRateLimiter struct {
	limiter        ratelimit.Limiter
	anonLimit      int
	anonWindow     time.Duration
	standardLimit  int
	standardWindow time.Duration
}

func NewGenerationRateLimiter(limiter ratelimit.Limiter, anonLimit int, anonWindow time.Duration, standardLimit int, standardWindow time.Duration) *GenerationRateLimiter {
	return &GenerationRateLimiter{
		limiter:        limiter,
		anonLimit:      anonLimit,
		anonWindow:     anonWindow,
		standardLimit:  standardLimit,
		standardWindow: standardWindow,
	}
}

// Check applies the limit for principal, returning apperror.KindRateLimited
// (with a retry_after detail) if it is exceeded.
func (g *GenerationRateLimiter) Check(ctx context.Context, principal models.Principal) error {
	var key string
	var limit int
	var window time.Duration

	if principal.IsAnonymous() {
		key = "anon:" + principal.ID
		limit, window = g.anonLimit, g.anonWindow
	} else {
		key = "user:" + principal.ID
		limit, window = g.standardLimit, g.standardWindow
	}

	result, err := g.limiter.Allow(ctx, key, limit, window)
	if err != nil {
		return err
	}
	if !result.Allowed {
		return apperror.New(apperror.KindRateLimited, "generation rate limit exceeded").WithDetails(map[string]any{
			"retry_after_seconds": int(result.RetryAfter.Seconds()),
		})
	}
	return nil
}
