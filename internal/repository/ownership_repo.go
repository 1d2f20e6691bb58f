package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/graceverse/study-api/internal/models"
)

// SQLiteOwnershipRepository implements OwnershipRepository for SQLite.
type SQLiteOwnershipRepository struct {
	db *sql.DB
}

// NewSQLiteOwnershipRepository creates a new SQLite ownership repository.
func NewSQLiteOwnershipRepository(db *sql.DB) *SQLiteOwnershipRepository {
	return &SQLiteOwnershipRepository{db: db}
}

func (r *SQLiteOwnershipRepository) LinkUser(ctx context.Context, userID, artifactID string, saved bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `INSERT INTO ownership_user (user_id, artifact_id, is_saved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, artifact_id) DO UPDATE SET updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, userID, artifactID, boolToInt(saved), now, now)
	return err
}

func (r *SQLiteOwnershipRepository) LinkAnon(ctx context.Context, sessionID, artifactID string, saved bool, expiresAt time.Time) error {
	query := `INSERT INTO ownership_anon (session_id, artifact_id, is_saved, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, artifact_id) DO UPDATE SET expires_at = excluded.expires_at`
	_, err := r.db.ExecContext(ctx, query, sessionID, artifactID, boolToInt(saved),
		time.Now().UTC().Format(time.RFC3339), expiresAt.Format(time.RFC3339))
	return err
}

// SetSavedUser reports whether a row existed to update.
func (r *SQLiteOwnershipRepository) SetSavedUser(ctx context.Context, userID, artifactID string, saved bool) (bool, error) {
	query := `UPDATE ownership_user SET is_saved = ?, updated_at = ? WHERE user_id = ? AND artifact_id = ?`
	result, err := r.db.ExecContext(ctx, query, boolToInt(saved), time.Now().UTC().Format(time.RFC3339), userID, artifactID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// SetSavedAnon reports whether a row existed to update.
func (r *SQLiteOwnershipRepository) SetSavedAnon(ctx context.Context, sessionID, artifactID string, saved bool) (bool, error) {
	query := `UPDATE ownership_anon SET is_saved = ? WHERE session_id = ? AND artifact_id = ?`
	result, err := r.db.ExecContext(ctx, query, boolToInt(saved), sessionID, artifactID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *SQLiteOwnershipRepository) ListForUser(ctx context.Context, userID string, savedOnly bool, limit, offset int) ([]models.OwnedArtifact, int, error) {
	total, err := r.countFor(ctx, "ownership_user", "user_id", userID, savedOnly)
	if err != nil {
		return nil, 0, err
	}
	query := `SELECT a.id, a.fingerprint, a.input_kind, a.raw_input, a.language, a.content_json, a.created_at,
			o.is_saved, o.created_at
		FROM artifacts a JOIN ownership_user o ON a.id = o.artifact_id
		WHERE o.user_id = ?` + savedFilter(savedOnly) + `
		ORDER BY o.created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	owned, err := scanOwnedArtifacts(rows)
	return owned, total, err
}

func (r *SQLiteOwnershipRepository) ListForAnon(ctx context.Context, sessionID string, savedOnly bool, limit, offset int) ([]models.OwnedArtifact, int, error) {
	total, err := r.countFor(ctx, "ownership_anon", "session_id", sessionID, savedOnly)
	if err != nil {
		return nil, 0, err
	}
	query := `SELECT a.id, a.fingerprint, a.input_kind, a.raw_input, a.language, a.content_json, a.created_at,
			o.is_saved, o.created_at
		FROM artifacts a JOIN ownership_anon o ON a.id = o.artifact_id
		WHERE o.session_id = ?` + savedFilter(savedOnly) + `
		ORDER BY o.created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	owned, err := scanOwnedArtifacts(rows)
	return owned, total, err
}

func (r *SQLiteOwnershipRepository) countFor(ctx context.Context, table, keyCol, keyVal string, savedOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM ` + table + ` WHERE ` + keyCol + ` = ?`
	if savedOnly {
		query += ` AND is_saved = 1`
	}
	var count int
	err := r.db.QueryRowContext(ctx, query, keyVal).Scan(&count)
	return count, err
}

// CountReferences reports how many ownership rows (user + anon combined)
// reference artifactID, the same count Content.DeleteOrphan computes with
// its own query before deleting.
func (r *SQLiteOwnershipRepository) CountReferences(ctx context.Context, artifactID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM ownership_user WHERE artifact_id = ?) +
			(SELECT COUNT(*) FROM ownership_anon WHERE artifact_id = ?)`,
		artifactID, artifactID).Scan(&count)
	return count, err
}

// MigrateAnonToUser transfers all of an anonymous session's ownership rows to
// a newly-authenticated user, preserving save state and deduplicating
// against any rows the user already owns.
func (r *SQLiteOwnershipRepository) MigrateAnonToUser(ctx context.Context, sessionID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ownership_user (user_id, artifact_id, is_saved, created_at, updated_at)
		SELECT ?, artifact_id, is_saved, ?, ?
		FROM ownership_anon WHERE session_id = ?
		ON CONFLICT(user_id, artifact_id) DO UPDATE SET
			is_saved = MAX(ownership_user.is_saved, excluded.is_saved),
			updated_at = excluded.updated_at`,
		userID, now, now, sessionID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ownership_anon WHERE session_id = ?`, sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLiteOwnershipRepository) DeleteExpiredAnon(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ownership_anon WHERE expires_at < ?`, before.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func savedFilter(savedOnly bool) string {
	if savedOnly {
		return " AND o.is_saved = 1"
	}
	return ""
}

func scanOwnedArtifacts(rows *sql.Rows) ([]models.OwnedArtifact, error) {
	var owned []models.OwnedArtifact
	for rows.Next() {
		var a models.Artifact
		var rawInput sql.NullString
		var contentJSON, createdAt, ownedCreatedAt string
		var isSaved int

		if err := rows.Scan(&a.ID, &a.Fingerprint, &a.InputKind, &rawInput, &a.Language, &contentJSON, &createdAt,
			&isSaved, &ownedCreatedAt); err != nil {
			return nil, err
		}
		a.RawInput = rawInput.String
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if err := json.Unmarshal([]byte(contentJSON), &a.Content); err != nil {
			return nil, err
		}
		linkedAt, _ := time.Parse(time.RFC3339, ownedCreatedAt)
		owned = append(owned, models.OwnedArtifact{
			Artifact:  &a,
			IsSaved:   isSaved != 0,
			CreatedAt: linkedAt,
		})
	}
	return owned, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
