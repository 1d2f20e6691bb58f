package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode_KnownKinds(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:        http.StatusBadRequest,
		KindNotFound:          http.StatusNotFound,
		KindConflict:          http.StatusConflict,
		KindSessionExpired:    http.StatusGone,
		KindRateLimited:       http.StatusTooManyRequests,
		KindInsufficientFunds: http.StatusTooManyRequests,
		KindUpstream:          http.StatusBadGateway,
		KindUnprocessable:     http.StatusUnprocessableEntity,
		KindPaymentFailed:     http.StatusPaymentRequired,
	}
	for kind, want := range cases {
		if got := StatusCode(New(kind, "x")); got != want {
			t.Errorf("StatusCode(%v) = %d, want %d", kind, got, want)
		}
	}
}

func TestStatusCode_NonAppErrorDefaultsInternal(t *testing.T) {
	if got := StatusCode(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("StatusCode(plain error) = %d, want 500", got)
	}
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("db closed")
	err := Wrap(KindInternal, "query failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Wrap() result does not unwrap to the cause")
	}
	if err.Error() != fmt.Sprintf("query failed: %v", cause) {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWithDetails_CarriesStructuredContext(t *testing.T) {
	err := New(KindInsufficientFunds, "insufficient token balance").WithDetails(map[string]any{
		"available": 15, "required": 20,
	})
	details := DetailsOf(err)
	if details["available"] != 15 || details["required"] != 20 {
		t.Errorf("DetailsOf() = %v", details)
	}
	if KindOf(err) != KindInsufficientFunds {
		t.Errorf("KindOf() = %v, want KindInsufficientFunds", KindOf(err))
	}
}

func TestKindOf_NonAppErrorDefaultsInternal(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("KindOf(plain error) != KindInternal")
	}
	if DetailsOf(errors.New("boom")) != nil {
		t.Error("DetailsOf(plain error) != nil")
	}
}

func TestSentinels_AreDistinctKinds(t *testing.T) {
	if KindOf(ErrSessionExpired) != KindSessionExpired {
		t.Error("ErrSessionExpired has wrong Kind")
	}
	if KindOf(ErrInsufficientTokens) != KindInsufficientFunds {
		t.Error("ErrInsufficientTokens has wrong Kind")
	}
	if KindOf(ErrInvalidSignature) != KindUnauthorized {
		t.Error("ErrInvalidSignature has wrong Kind")
	}
}
