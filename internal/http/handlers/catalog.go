package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/repository"
)

// CatalogHandler implements the auxiliary read-model endpoints: recommended
// topics, known categories, and the verse of the day.
type CatalogHandler struct {
	catalog repository.CatalogRepository
}

func NewCatalogHandler(catalog repository.CatalogRepository) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Topics handles GET /topics-recommended: category or categories (comma
// list, mutually exclusive), limit<=100, offset.
func (h *CatalogHandler) Topics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	categoriesParam := q.Get("categories")
	if category != "" && categoriesParam != "" {
		writeError(w, apperror.New(apperror.KindValidation, "category and categories are mutually exclusive"))
		return
	}

	var categories []string
	switch {
	case category != "":
		categories = []string{category}
	case categoriesParam != "":
		for _, c := range strings.Split(categoriesParam, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				categories = append(categories, c)
			}
		}
	}

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

	topics, err := h.catalog.ListTopics(r.Context(), categories, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, map[string]any{"topics": topics, "limit": limit, "offset": offset})
}

// Categories handles GET /topics-categories.
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]any{"categories": categories})
}

// DailyVerse handles GET /daily-verse?date=YYYY-MM-DD, assembling the
// per-language rows into translations{code->text}. date defaults to today (UTC).
func (h *CatalogHandler) DailyVerse(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, apperror.New(apperror.KindValidation, "date must be YYYY-MM-DD"))
		return
	}

	rows, err := h.catalog.ListDailyVerseTranslations(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(rows) == 0 {
		writeError(w, apperror.New(apperror.KindNotFound, "no daily verse curated for this date"))
		return
	}

	translations := make(map[string]string, len(rows))
	reference := rows[0].Reference
	for _, row := range rows {
		translations[string(row.Language)] = row.Text
	}

	writeData(w, map[string]any{
		"date":         date,
		"reference":    reference,
		"translations": translations,
	})
}
