package mw

import (
	"net/http"

	"github.com/graceverse/study-api/internal/version"
)

// VersionHeader names the response header carrying the running API version.
const VersionHeader = "X-API-Version"

// APIVersion stamps every response with the build version so clients can
// detect incompatible deployments. The version is resolved once, not per
// request.
func APIVersion() func(http.Handler) http.Handler {
	v := version.Get().Short()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(VersionHeader, v)
			next.ServeHTTP(w, r)
		})
	}
}
