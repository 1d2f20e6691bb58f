package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/graceverse/study-api/internal/models"
)

// SQLiteSessionRepository implements SessionRepository for SQLite.
type SQLiteSessionRepository struct {
	db *sql.DB
}

// NewSQLiteSessionRepository creates a new SQLite session repository.
func NewSQLiteSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

func (r *SQLiteSessionRepository) Create(ctx context.Context, s *models.AnonymousSession) error {
	query := `INSERT INTO anonymous_sessions (id, device_fp_hash, created_at, expires_at, migrated_to)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, s.ID, nullString(s.DeviceFPHash), s.CreatedAt.Format(time.RFC3339),
		s.ExpiresAt.Format(time.RFC3339), nullString(s.MigratedTo))
	return err
}

func (r *SQLiteSessionRepository) GetByID(ctx context.Context, id string) (*models.AnonymousSession, error) {
	query := `SELECT id, device_fp_hash, created_at, expires_at, migrated_to FROM anonymous_sessions WHERE id = ?`
	var s models.AnonymousSession
	var fpHash, migratedTo sql.NullString
	var createdAt, expiresAt string

	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &fpHash, &createdAt, &expiresAt, &migratedTo)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.DeviceFPHash = fpHash.String
	s.MigratedTo = migratedTo.String
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)

	return &s, nil
}

func (r *SQLiteSessionRepository) MarkMigrated(ctx context.Context, id, userID string) error {
	query := `UPDATE anonymous_sessions SET migrated_to = ? WHERE id = ? AND migrated_to IS NULL`
	result, err := r.db.ExecContext(ctx, query, userID, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SQLiteSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM anonymous_sessions WHERE expires_at < ?`
	result, err := r.db.ExecContext(ctx, query, before.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
