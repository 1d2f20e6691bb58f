package handlers

import (
	"net/http"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/http/mw"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/service"
)

// GenerationHandler implements POST /study-generate.
type GenerationHandler struct {
	generation *service.GenerationService
	rateLimit  *mw.GenerationRateLimiter
}

func NewGenerationHandler(generation *service.GenerationService, rateLimit *mw.GenerationRateLimiter) *GenerationHandler {
	return &GenerationHandler{generation: generation, rateLimit: rateLimit}
}

type generateRequest struct {
	InputType  string `json:"input_type"`
	InputValue string `json:"input_value"`
	Language   string `json:"language"`
}

// Generate handles POST /study-generate: optional bearer, generate or
// return cached, rate limited only on a cache miss.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	principal := mw.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperror.New(apperror.KindUnauthorized, "principal context missing"))
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind := models.InputKind(req.InputType)
	if kind != models.InputScripture && kind != models.InputTopic {
		writeError(w, apperror.New(apperror.KindValidation, "input_type must be scripture or topic"))
		return
	}
	if req.InputValue == "" {
		writeError(w, apperror.New(apperror.KindValidation, "input_value is required"))
		return
	}
	lang := models.Language(req.Language)
	if !lang.Valid() {
		writeError(w, apperror.New(apperror.KindValidation, "language must be one of en, hi, ml"))
		return
	}

	existing, err := h.generation.Peek(r.Context(), kind, req.InputValue, lang)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		// This request will be a miss: it counts against the rate limit
		// before any token spend or LLM call.
		if err := h.rateLimit.Check(r.Context(), *principal); err != nil {
			writeError(w, err)
			return
		}
	}

	result, err := h.generation.GetOrCreate(r.Context(), *principal, kind, req.InputValue, lang)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, map[string]any{
		"study_guide": studyGuideJSON(result.Artifact),
		"from_cache":  result.FromCache,
		"tokens": map[string]any{
			"consumed":            result.Cost,
			"remaining_daily":     result.Consume.RemainingDaily,
			"remaining_purchased": result.Consume.RemainingPurchased,
			"daily_limit":         result.DailyLimit,
		},
	})
}
