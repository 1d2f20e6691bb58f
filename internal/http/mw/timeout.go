package mw

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// TimeoutConfig sets the per-request deadline by path: most endpoints finish
// well inside Default, while paths listed in ExtendedPatterns (study-guide
// generation, which may ride out provider retries and failover) get
// Extended.
type TimeoutConfig struct {
	Default          time.Duration
	Extended         time.Duration
	ExtendedPatterns []string
}

// Timeout applies the configured deadline to each request's context and
// answers 504 if the handler has not finished by then. Handler panics are
// re-raised on the serving goroutine so the outer recoverer still sees them.
func Timeout(cfg TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.deadlineFor(r.URL.Path))
			defer cancel()

			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- fmt.Sprintf("%v\n%s", p, debug.Stack())
					}
				}()
				next.ServeHTTP(w, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case p := <-panicked:
				panic(p)
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					w.WriteHeader(http.StatusGatewayTimeout)
				}
			}
		})
	}
}

func (c TimeoutConfig) deadlineFor(path string) time.Duration {
	for _, pattern := range c.ExtendedPatterns {
		if strings.Contains(path, pattern) {
			return c.Extended
		}
	}
	return c.Default
}
