package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/graceverse/study-api/internal/models"
)

// SQLiteCatalogRepository implements CatalogRepository for SQLite.
type SQLiteCatalogRepository struct {
	db *sql.DB
}

// NewSQLiteCatalogRepository creates a new SQLite catalog repository.
func NewSQLiteCatalogRepository(db *sql.DB) *SQLiteCatalogRepository {
	return &SQLiteCatalogRepository{db: db}
}

func (r *SQLiteCatalogRepository) ListTopics(ctx context.Context, categories []string, limit, offset int) ([]*models.Topic, error) {
	query := `SELECT id, title, description, category, tags_json, key_verses_json, sort_weight FROM topics`
	args := []any{}
	if len(categories) > 0 {
		placeholders := make([]string, len(categories))
		for i, c := range categories {
			placeholders[i] = "?"
			args = append(args, c)
		}
		query += ` WHERE category IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY sort_weight DESC, title ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []*models.Topic
	for rows.Next() {
		var t models.Topic
		var tagsJSON, keyVersesJSON string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &tagsJSON, &keyVersesJSON, &t.SortWeight); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keyVersesJSON), &t.KeyVerses); err != nil {
			return nil, err
		}
		topics = append(topics, &t)
	}
	return topics, rows.Err()
}

func (r *SQLiteCatalogRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT category FROM topics ORDER BY category ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListDailyVerseTranslations returns every per-language row curated for date,
// the raw material the HTTP layer assembles into the translations map.
func (r *SQLiteCatalogRepository) ListDailyVerseTranslations(ctx context.Context, date string) ([]*models.DailyVerse, error) {
	query := `SELECT date, language, reference, verse_text FROM daily_verses WHERE date = ?`
	rows, err := r.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verses []*models.DailyVerse
	for rows.Next() {
		var v models.DailyVerse
		if err := rows.Scan(&v.Date, &v.Language, &v.Reference, &v.Text); err != nil {
			return nil, err
		}
		verses = append(verses, &v)
	}
	return verses, rows.Err()
}

func (r *SQLiteCatalogRepository) UpsertDailyVerse(ctx context.Context, v *models.DailyVerse) error {
	query := `INSERT INTO daily_verses (date, language, reference, verse_text)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, language) DO UPDATE SET
			reference = excluded.reference,
			verse_text = excluded.verse_text`
	_, err := r.db.ExecContext(ctx, query, v.Date, v.Language, v.Reference, v.Text)
	return err
}

func (r *SQLiteCatalogRepository) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	query := `INSERT INTO feedback (id, artifact_id, user_ref, was_helpful, message, category, sentiment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, f.ID, nullString(f.ArtifactID), f.UserRef, boolToInt(f.WasHelpful),
		nullString(f.Message), f.Category, f.Sentiment, f.CreatedAt.Format(time.RFC3339))
	return err
}
