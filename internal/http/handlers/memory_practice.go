package handlers

import (
	"net/http"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/http/mw"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/service"
)

// MemoryPracticeHandler implements POST /submit-memory-practice.
type MemoryPracticeHandler struct {
	review *service.ReviewService
}

func NewMemoryPracticeHandler(review *service.ReviewService) *MemoryPracticeHandler {
	return &MemoryPracticeHandler{review: review}
}

type submitPracticeRequest struct {
	VerseID    string `json:"verse_id"`
	Mode       string `json:"mode"`
	Quality    int    `json:"quality"`
	Confidence *int   `json:"confidence"`
	Accuracy   *int   `json:"accuracy"`
	TimeSpent  *int   `json:"time_spent"`
	HintsUsed  int    `json:"hints_used"`
}

// Submit handles POST /submit-memory-practice: user bearer only.
func (h *MemoryPracticeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	principal := mw.GetPrincipal(r.Context())
	if principal == nil || !principal.IsUser() {
		writeError(w, apperror.New(apperror.KindUnauthorized, "authenticated user required"))
		return
	}

	var req submitPracticeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.VerseID == "" {
		writeError(w, apperror.New(apperror.KindValidation, "verse_id is required"))
		return
	}

	result, err := h.review.Submit(r.Context(), service.SubmitInput{
		UserID:     principal.ID,
		VerseID:    req.VerseID,
		Mode:       models.PracticeMode(req.Mode),
		Quality:    req.Quality,
		Confidence: req.Confidence,
		Accuracy:   req.Accuracy,
		TimeSpent:  req.TimeSpent,
		HintsUsed:  req.HintsUsed,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, map[string]any{
		"verse":         result.Verse,
		"mode_stats":    result.ModeStats,
		"daily_goal":    result.DailyGoal,
		"streak":        result.Streak,
		"bonus_awarded": result.BonusAwarded,
	})
}
