package handlers

import (
	"net/http"
	"strconv"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/http/mw"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
)

// StudyGuideHandler implements the GET/POST /study-guides pair: listing
// owned guides and toggling the saved flag.
type StudyGuideHandler struct {
	ownership repository.OwnershipRepository
}

func NewStudyGuideHandler(ownership repository.OwnershipRepository) *StudyGuideHandler {
	return &StudyGuideHandler{ownership: ownership}
}

// List handles GET /study-guides: query params saved, limit (<=100), offset.
func (h *StudyGuideHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := mw.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperror.New(apperror.KindUnauthorized, "principal context missing"))
		return
	}

	q := r.URL.Query()
	savedOnly := q.Get("saved") == "true"
	limit := 20
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperror.New(apperror.KindValidation, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperror.New(apperror.KindValidation, "offset must be a non-negative integer"))
			return
		}
		offset = n
	}

	var owned []models.OwnedArtifact
	var total int
	var err error
	if principal.IsUser() {
		owned, total, err = h.ownership.ListForUser(r.Context(), principal.ID, savedOnly, limit, offset)
	} else {
		owned, total, err = h.ownership.ListForAnon(r.Context(), principal.ID, savedOnly, limit, offset)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(owned))
	for _, o := range owned {
		items = append(items, map[string]any{
			"study_guide": studyGuideJSON(o.Artifact),
			"is_saved":    o.IsSaved,
			"linked_at":   o.CreatedAt,
		})
	}

	writeData(w, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

type saveRequest struct {
	GuideID string `json:"guide_id"`
	Action  string `json:"action"`
}

// Save handles POST /study-guides: {guide_id, action: save|unsave}, user
// bearer only.
func (h *StudyGuideHandler) Save(w http.ResponseWriter, r *http.Request) {
	principal := mw.GetPrincipal(r.Context())
	if principal == nil || !principal.IsUser() {
		writeError(w, apperror.New(apperror.KindUnauthorized, "authenticated user required"))
		return
	}

	var req saveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.GuideID == "" {
		writeError(w, apperror.New(apperror.KindValidation, "guide_id is required"))
		return
	}

	var saved bool
	switch req.Action {
	case "save":
		saved = true
	case "unsave":
		saved = false
	default:
		writeError(w, apperror.New(apperror.KindValidation, "action must be save or unsave"))
		return
	}

	existed, err := h.ownership.SetSavedUser(r.Context(), principal.ID, req.GuideID, saved)
	if err != nil {
		writeError(w, err)
		return
	}
	if !existed {
		writeError(w, apperror.ErrArtifactNotFound)
		return
	}

	writeData(w, map[string]any{"guide_id": req.GuideID, "is_saved": saved})
}
