package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/graceverse/study-api/internal/models"
)

// SQLiteSubscriptionRepository implements SubscriptionRepository for SQLite.
type SQLiteSubscriptionRepository struct {
	db *sql.DB
}

// NewSQLiteSubscriptionRepository creates a new SQLite subscription repository.
func NewSQLiteSubscriptionRepository(db *sql.DB) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{db: db}
}

func (r *SQLiteSubscriptionRepository) GetByExternalRef(ctx context.Context, externalRef string) (*models.Subscription, error) {
	query := `SELECT id, user_id, external_ref, plan, status, current_period_end, created_at, updated_at
		FROM subscriptions WHERE external_ref = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, externalRef))
}

func (r *SQLiteSubscriptionRepository) GetActiveForUser(ctx context.Context, userID string) (*models.Subscription, error) {
	query := `SELECT id, user_id, external_ref, plan, status, current_period_end, created_at, updated_at
		FROM subscriptions WHERE user_id = ? AND status IN (?, ?) ORDER BY updated_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, models.SubActive, models.SubPendingCancellation))
}

func (r *SQLiteSubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	var periodEnd *string
	if sub.CurrentPeriodEnd != nil {
		s := sub.CurrentPeriodEnd.Format(time.RFC3339)
		periodEnd = &s
	}
	query := `INSERT INTO subscriptions (id, user_id, external_ref, plan, status, current_period_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_ref) DO UPDATE SET
			plan = excluded.plan,
			status = excluded.status,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.ExternalRef, sub.Plan, sub.Status,
		periodEnd, sub.CreatedAt.Format(time.RFC3339), sub.UpdatedAt.Format(time.RFC3339))
	return err
}

// MarkEventProcessed records a webhook event id, returning false if it was
// already recorded (the caller should then treat delivery as a no-op retry).
func (r *SQLiteSubscriptionRepository) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	query := `INSERT INTO processed_webhook_events (event_id, received_at) VALUES (?, ?) ON CONFLICT(event_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, eventID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *SQLiteSubscriptionRepository) scanOne(row *sql.Row) (*models.Subscription, error) {
	var sub models.Subscription
	var periodEnd sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&sub.ID, &sub.UserID, &sub.ExternalRef, &sub.Plan, &sub.Status, &periodEnd, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if periodEnd.Valid {
		t, _ := time.Parse(time.RFC3339, periodEnd.String)
		sub.CurrentPeriodEnd = &t
	}
	sub.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sub.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &sub, nil
}
