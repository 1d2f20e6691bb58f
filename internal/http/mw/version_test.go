package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/graceverse/study-api/internal/version"
)

func TestAPIVersionHeaderSet(t *testing.T) {
	handler := APIVersion()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	got := rec.Header().Get(VersionHeader)
	if got == "" {
		t.Fatalf("%s header not set", VersionHeader)
	}
	if want := version.Get().Short(); got != want {
		t.Errorf("%s = %q, want %q", VersionHeader, got, want)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d (middleware must not interfere)", rec.Code, http.StatusNoContent)
	}
}
