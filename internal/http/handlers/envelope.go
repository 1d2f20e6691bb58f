package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/models"
)

// envelope is the wire shape every endpoint returns:
// {"success":true,"data":...} or {"success":false,"error":{...}}. The API
// endpoints are raw chi handlers rather than Huma operations because huma's
// response model can't express this exact envelope.
type envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *envelopeError `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeData writes a 200 success envelope.
func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// writeCreated writes a 201 success envelope.
func writeCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

// writeError translates err into the error envelope via apperror's
// Kind-to-status mapping. A KindConflict never reaches here in practice
// (content-store conflicts are resolved internally before they can escape
// to the HTTP layer) but is still mapped rather than leaking a 500.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	code := string(apperror.KindInternal)
	message := "internal error"
	var details map[string]any

	if errors.As(err, &appErr) {
		code = errorCode(appErr)
		message = appErr.Message
		details = appErr.Details
	}

	status := apperror.StatusCode(err)
	if status == http.StatusInternalServerError {
		// Never leak internal error detail to clients.
		message = "internal error"
		details = nil
	}

	writeJSON(w, status, envelope{
		Success: false,
		Error: &envelopeError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// errorCode maps an apperror.Kind onto the PascalCase error codes clients
// key on (e.g. "LLMUnavailable", "InsufficientTokens"). KindUpstream covers
// both LLMUnavailable and LLMMalformed from the LLM gateway, distinguished
// here by message since both share one Kind.
func errorCode(appErr *apperror.Error) string {
	kind := appErr.Kind
	if kind == apperror.KindUpstream && strings.Contains(appErr.Message, "malformed") {
		return "LLMMalformed"
	}
	switch kind {
	case apperror.KindValidation:
		return "ValidationError"
	case apperror.KindNotFound:
		return "NotFound"
	case apperror.KindConflict:
		return "Conflict"
	case apperror.KindUnauthorized:
		return "Unauthorized"
	case apperror.KindForbidden:
		return "Forbidden"
	case apperror.KindSessionExpired:
		return "SessionExpired"
	case apperror.KindRateLimited:
		return "RateLimited"
	case apperror.KindInsufficientFunds:
		return "InsufficientTokens"
	case apperror.KindUpstream:
		return "LLMUnavailable"
	case apperror.KindUnprocessable:
		return "LLMRefused"
	case apperror.KindPaymentFailed:
		return "PaymentFailed"
	default:
		return "InternalError"
	}
}

// studyGuideJSON shapes an Artifact for the wire; the fingerprint is an
// internal cache key and stays out of responses.
func studyGuideJSON(a *models.Artifact) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"input_type":  a.InputKind,
		"input_value": a.RawInput,
		"language":    a.Language,
		"content":     a.Content,
		"created_at":  a.CreatedAt,
	}
}

// decodeJSON decodes the request body into v, returning a ValidationError on
// malformed JSON.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.New(apperror.KindValidation, "malformed request body")
	}
	return nil
}
