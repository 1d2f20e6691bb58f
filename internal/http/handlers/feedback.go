package handlers

import (
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/http/mw"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
)

// FeedbackHandler implements POST /feedback.
type FeedbackHandler struct {
	catalog repository.CatalogRepository
}

func NewFeedbackHandler(catalog repository.CatalogRepository) *FeedbackHandler {
	return &FeedbackHandler{catalog: catalog}
}

type feedbackRequest struct {
	ArtifactID string   `json:"artifact_id"`
	WasHelpful bool     `json:"was_helpful"`
	Message    string   `json:"message"`
	Category   string   `json:"category"`
	Sentiment  *float64 `json:"sentiment"`
}

// Create handles POST /feedback: auth optional, so the user ref is whatever
// principal the context middleware resolved (user or anonymous session).
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := mw.GetPrincipal(r.Context())

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	category := models.FeedbackCategory(req.Category)
	switch category {
	case models.FeedbackCategoryContent, models.FeedbackCategoryBug, models.FeedbackCategoryFeature, models.FeedbackCategoryOther:
	default:
		writeError(w, apperror.New(apperror.KindValidation, "category must be one of content, bug, feature, other"))
		return
	}
	if req.Sentiment != nil && (*req.Sentiment < -1 || *req.Sentiment > 1) {
		writeError(w, apperror.New(apperror.KindValidation, "sentiment must be between -1 and 1"))
		return
	}

	userRef := ""
	if principal != nil {
		userRef = principal.UserRef()
	}

	feedback := &models.Feedback{
		ID:         ulid.Make().String(),
		ArtifactID: req.ArtifactID,
		UserRef:    userRef,
		WasHelpful: req.WasHelpful,
		Message:    req.Message,
		Category:   category,
		Sentiment:  req.Sentiment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.catalog.CreateFeedback(r.Context(), feedback); err != nil {
		writeError(w, err)
		return
	}

	writeCreated(w, map[string]any{"id": feedback.ID})
}
