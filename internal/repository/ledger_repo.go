package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/graceverse/study-api/internal/models"
)

// SQLiteLedgerRepository implements LedgerRepository for SQLite.
type SQLiteLedgerRepository struct {
	db *sql.DB
}

// NewSQLiteLedgerRepository creates a new SQLite ledger repository.
func NewSQLiteLedgerRepository(db *sql.DB) *SQLiteLedgerRepository {
	return &SQLiteLedgerRepository{db: db}
}

func (r *SQLiteLedgerRepository) Get(ctx context.Context, userRef string, plan models.Plan) (*models.UserTokenAccount, error) {
	query := `SELECT user_ref, plan, daily_available, purchased_available, daily_limit, last_reset, consumed_today
		FROM user_token_accounts WHERE user_ref = ? AND plan = ?`
	var a models.UserTokenAccount
	var lastReset string

	err := r.db.QueryRowContext(ctx, query, userRef, plan).Scan(
		&a.UserRef, &a.Plan, &a.DailyAvailable, &a.PurchasedAvailable, &a.DailyLimit, &lastReset, &a.ConsumedToday)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.LastReset, _ = time.Parse(time.RFC3339, lastReset)
	return &a, nil
}

// ListByUserRef returns every (UserRef, Plan) row for a principal. A
// principal can legally own more than one plan row; PlanResolver takes the
// max-priority row across the set.
func (r *SQLiteLedgerRepository) ListByUserRef(ctx context.Context, userRef string) ([]*models.UserTokenAccount, error) {
	query := `SELECT user_ref, plan, daily_available, purchased_available, daily_limit, last_reset, consumed_today
		FROM user_token_accounts WHERE user_ref = ?`
	rows, err := r.db.QueryContext(ctx, query, userRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.UserTokenAccount
	for rows.Next() {
		var a models.UserTokenAccount
		var lastReset string
		if err := rows.Scan(&a.UserRef, &a.Plan, &a.DailyAvailable, &a.PurchasedAvailable, &a.DailyLimit,
			&lastReset, &a.ConsumedToday); err != nil {
			return nil, err
		}
		a.LastReset, _ = time.Parse(time.RFC3339, lastReset)
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// Upsert writes the full ledger row for (UserRef, Plan), used by the daily
// reset and by debits/credits that recompute the whole row under a lock.
func (r *SQLiteLedgerRepository) Upsert(ctx context.Context, acct *models.UserTokenAccount) error {
	query := `INSERT INTO user_token_accounts
		(user_ref, plan, daily_available, purchased_available, daily_limit, last_reset, consumed_today)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_ref, plan) DO UPDATE SET
			daily_available = excluded.daily_available,
			purchased_available = excluded.purchased_available,
			daily_limit = excluded.daily_limit,
			last_reset = excluded.last_reset,
			consumed_today = excluded.consumed_today`
	_, err := r.db.ExecContext(ctx, query, acct.UserRef, acct.Plan, acct.DailyAvailable, acct.PurchasedAvailable,
		acct.DailyLimit, acct.LastReset.Format(time.RFC3339), acct.ConsumedToday)
	return err
}

// AddPurchased credits a token pack purchase as a plain additive credit; it
// does not detect a repeated request. A row created here carries a zero
// last_reset, so the first read applies the daily reset and fills the daily
// pool to the plan's limit.
func (r *SQLiteLedgerRepository) AddPurchased(ctx context.Context, userRef string, plan models.Plan, amount int) error {
	query := `INSERT INTO user_token_accounts (user_ref, plan, daily_available, purchased_available, daily_limit, last_reset, consumed_today)
		VALUES (?, ?, 0, ?, 0, ?, 0)
		ON CONFLICT(user_ref, plan) DO UPDATE SET
			purchased_available = user_token_accounts.purchased_available + excluded.purchased_available`
	_, err := r.db.ExecContext(ctx, query, userRef, plan, amount, time.Time{}.Format(time.RFC3339))
	return err
}
