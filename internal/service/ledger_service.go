package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
)

// ConsumeResult reports the ledger state immediately after a consume, plus
// how the cost split across the two pools so a later refund can reverse the
// deduction exactly.
type ConsumeResult struct {
	FromDaily          int
	FromPurchased      int
	RemainingDaily     int
	RemainingPurchased int
}

// Amount is the total the consume deducted.
func (r ConsumeResult) Amount() int { return r.FromDaily + r.FromPurchased }

// LedgerService implements the token economy: daily+purchased balances,
// daily-reset-on-read, and daily-then-purchased consumption ordering.
// Row updates rely on SQLite's single-writer serialization for atomicity
// rather than an explicit row lock.
type LedgerService struct {
	ledger repository.LedgerRepository
	logger *slog.Logger
}

func NewLedgerService(ledger repository.LedgerRepository, logger *slog.Logger) *LedgerService {
	return &LedgerService{ledger: ledger, logger: logger}
}

// GetOrCreate returns the (user_ref, plan) account, applying the daily reset
// if last_reset is strictly before today's UTC date.
func (s *LedgerService) GetOrCreate(ctx context.Context, principal models.Principal, plan models.Plan, dailyLimit int) (*models.UserTokenAccount, error) {
	acct, err := s.ledger.Get(ctx, principal.UserRef(), plan)
	if err != nil {
		return nil, fmt.Errorf("get ledger account: %w", err)
	}
	if acct == nil {
		acct = &models.UserTokenAccount{
			UserRef:        principal.UserRef(),
			Plan:           plan,
			DailyLimit:     dailyLimit,
			DailyAvailable: dailyLimit,
			LastReset:      time.Now().UTC(),
		}
		if err := s.ledger.Upsert(ctx, acct); err != nil {
			return nil, fmt.Errorf("create ledger account: %w", err)
		}
		return acct, nil
	}

	s.applyDailyReset(acct, dailyLimit)
	if err := s.ledger.Upsert(ctx, acct); err != nil {
		return nil, fmt.Errorf("persist ledger reset: %w", err)
	}
	return acct, nil
}

// applyDailyReset resets daily_available/consumed_today when last_reset's
// UTC date is strictly before today's. purchased_available is never touched
// by a reset. dailyLimit may have changed since the account was created
// (e.g. a plan upgrade), so it is always refreshed.
func (s *LedgerService) applyDailyReset(acct *models.UserTokenAccount, dailyLimit int) {
	acct.DailyLimit = dailyLimit
	now := time.Now().UTC()
	if utcDate(acct.LastReset).Before(utcDate(now)) {
		acct.DailyAvailable = dailyLimit
		acct.ConsumedToday = 0
		acct.LastReset = now
	}
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Consume deducts cost from principal's (plan) account, returning
// InsufficientTokens if the two pools combined cannot cover it. Daily tokens
// expire at the UTC midnight reset while purchased tokens never do, so the
// daily pool is drained first and purchased covers any deficit.
// consumed_today tracks only the daily portion. Premium plans are unmetered:
// consume always succeeds and no counters move.
func (s *LedgerService) Consume(ctx context.Context, principal models.Principal, plan models.Plan, dailyLimit, cost int) (ConsumeResult, error) {
	if cost <= 0 {
		return ConsumeResult{}, apperror.New(apperror.KindValidation, "invalid token amount")
	}

	acct, err := s.GetOrCreate(ctx, principal, plan, dailyLimit)
	if err != nil {
		return ConsumeResult{}, err
	}

	if plan == models.PlanPremium {
		return ConsumeResult{RemainingDaily: acct.DailyAvailable, RemainingPurchased: acct.PurchasedAvailable}, nil
	}

	available := acct.PurchasedAvailable + acct.DailyAvailable
	if available < cost {
		return ConsumeResult{}, apperror.ErrInsufficientTokens.WithDetails(map[string]any{
			"available": available,
			"required":  cost,
			"reset_at":  nextUTCMidnight(acct.LastReset).Format(time.RFC3339),
		})
	}

	fromDaily := cost
	if fromDaily > acct.DailyAvailable {
		fromDaily = acct.DailyAvailable
	}
	fromPurchased := cost - fromDaily

	acct.DailyAvailable -= fromDaily
	acct.PurchasedAvailable -= fromPurchased
	acct.ConsumedToday += fromDaily

	if err := s.ledger.Upsert(ctx, acct); err != nil {
		return ConsumeResult{}, fmt.Errorf("persist consume: %w", err)
	}

	return ConsumeResult{
		FromDaily:          fromDaily,
		FromPurchased:      fromPurchased,
		RemainingDaily:     acct.DailyAvailable,
		RemainingPurchased: acct.PurchasedAvailable,
	}, nil
}

// Refund reverses a prior consume, restoring each pool by exactly the amount
// that consume took from it. If a daily reset ran in between, the daily
// portion is capped at daily_limit rather than minting tokens past it.
func (s *LedgerService) Refund(ctx context.Context, principal models.Principal, plan models.Plan, dailyLimit int, spent ConsumeResult) error {
	if spent.Amount() <= 0 {
		return nil
	}
	if plan == models.PlanPremium {
		return nil
	}

	acct, err := s.GetOrCreate(ctx, principal, plan, dailyLimit)
	if err != nil {
		return err
	}

	acct.DailyAvailable += spent.FromDaily
	if acct.DailyAvailable > acct.DailyLimit {
		acct.DailyAvailable = acct.DailyLimit
	}
	acct.ConsumedToday -= spent.FromDaily
	if acct.ConsumedToday < 0 {
		acct.ConsumedToday = 0
	}
	acct.PurchasedAvailable += spent.FromPurchased

	if err := s.ledger.Upsert(ctx, acct); err != nil {
		return fmt.Errorf("persist refund: %w", err)
	}

	s.logger.Info("token refund applied",
		"user_ref", principal.UserRef(), "plan", plan,
		"from_daily", spent.FromDaily, "from_purchased", spent.FromPurchased)
	return nil
}

// SyncPlanLimits aligns the (user_ref, plan) row with the plan's current
// daily limit, creating the row if needed. daily_available is recomputed as
// limit minus what was already consumed today, so an upgrade grants the new
// headroom immediately without erasing today's consumption.
func (s *LedgerService) SyncPlanLimits(ctx context.Context, principal models.Principal, plan models.Plan, dailyLimit int) error {
	acct, err := s.GetOrCreate(ctx, principal, plan, dailyLimit)
	if err != nil {
		return err
	}

	acct.DailyLimit = dailyLimit
	acct.DailyAvailable = dailyLimit - acct.ConsumedToday
	if acct.DailyAvailable < 0 {
		acct.DailyAvailable = 0
	}
	if err := s.ledger.Upsert(ctx, acct); err != nil {
		return fmt.Errorf("persist plan sync: %w", err)
	}
	return nil
}

// AddPurchased credits amount purchased tokens onto principal's (plan)
// account; never resets, never touched by the daily cycle.
func (s *LedgerService) AddPurchased(ctx context.Context, principal models.Principal, plan models.Plan, amount int) error {
	if amount <= 0 || amount > 10000 {
		return apperror.New(apperror.KindValidation, "purchase amount must be between 1 and 10000")
	}
	return s.ledger.AddPurchased(ctx, principal.UserRef(), plan, amount)
}

func nextUTCMidnight(from time.Time) time.Time {
	d := utcDate(from)
	return d.AddDate(0, 0, 1)
}
