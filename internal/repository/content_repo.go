package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/graceverse/study-api/internal/models"
)

// SQLiteContentRepository implements ContentRepository for SQLite.
type SQLiteContentRepository struct {
	db *sql.DB
}

// NewSQLiteContentRepository creates a new SQLite content repository.
func NewSQLiteContentRepository(db *sql.DB) *SQLiteContentRepository {
	return &SQLiteContentRepository{db: db}
}

// Create inserts a new Artifact, returning ErrConflict if (fingerprint,
// language) already exists so the caller can fall through to a re-read.
func (r *SQLiteContentRepository) Create(ctx context.Context, a *models.Artifact) error {
	contentJSON, err := json.Marshal(a.Content)
	if err != nil {
		return err
	}
	query := `INSERT INTO artifacts (id, fingerprint, input_kind, raw_input, language, content_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, a.ID, a.Fingerprint, a.InputKind, nullString(a.RawInput), a.Language,
		string(contentJSON), a.CreatedAt.Format(time.RFC3339))
	if err != nil && isUniqueConstraintErr(err) {
		return ErrConflict
	}
	return err
}

func (r *SQLiteContentRepository) GetByFingerprint(ctx context.Context, fingerprint string, lang models.Language) (*models.Artifact, error) {
	query := `SELECT id, fingerprint, input_kind, raw_input, language, content_json, created_at
		FROM artifacts WHERE fingerprint = ? AND language = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, fingerprint, lang))
}

func (r *SQLiteContentRepository) GetByID(ctx context.Context, id string) (*models.Artifact, error) {
	query := `SELECT id, fingerprint, input_kind, raw_input, language, content_json, created_at
		FROM artifacts WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// DeleteOrphan deletes the artifact only if no ownership row (user or anon)
// still references it.
func (r *SQLiteContentRepository) DeleteOrphan(ctx context.Context, artifactID string) (bool, error) {
	var refs int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM ownership_user WHERE artifact_id = ?) +
			(SELECT COUNT(*) FROM ownership_anon WHERE artifact_id = ?)`,
		artifactID, artifactID).Scan(&refs)
	if err != nil {
		return false, err
	}
	if refs > 0 {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, artifactID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *SQLiteContentRepository) scanOne(row *sql.Row) (*models.Artifact, error) {
	var a models.Artifact
	var rawInput sql.NullString
	var contentJSON, createdAt string

	err := row.Scan(&a.ID, &a.Fingerprint, &a.InputKind, &rawInput, &a.Language, &contentJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.RawInput = rawInput.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if err := json.Unmarshal([]byte(contentJSON), &a.Content); err != nil {
		return nil, err
	}
	return &a, nil
}

// isUniqueConstraintErr reports whether err is a SQLite/libsql unique-index
// violation. The driver surfaces this as a plain string rather than a typed
// sentinel, so detection is by substring match (the idiomatic approach for
// this driver family).
func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
