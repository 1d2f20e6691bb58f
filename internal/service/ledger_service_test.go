package service

import (
	"context"
	"testing"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
)

func TestLedgerService_ConsumeDailyFirst(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewLedgerService(repos.Ledger, testLogger())
	ctx := context.Background()
	principal := models.NewUserPrincipal("user_1")

	if err := svc.AddPurchased(ctx, principal, models.PlanFree, 5); err != nil {
		t.Fatalf("AddPurchased() error = %v", err)
	}

	result, err := svc.Consume(ctx, principal, models.PlanFree, 8, 7)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if result.FromDaily != 7 || result.FromPurchased != 0 {
		t.Errorf("split = daily %d / purchased %d, want 7 / 0 (daily pool drained first)",
			result.FromDaily, result.FromPurchased)
	}
	if result.RemainingDaily != 1 {
		t.Errorf("RemainingDaily = %d, want 1", result.RemainingDaily)
	}
	if result.RemainingPurchased != 5 {
		t.Errorf("RemainingPurchased = %d, want 5 (untouched while daily covers cost)", result.RemainingPurchased)
	}
}

func TestLedgerService_PurchasedCoversDeficit(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewLedgerService(repos.Ledger, testLogger())
	ctx := context.Background()
	principal := models.NewUserPrincipal("user_deficit")

	// Bring daily down to 5 of 8, then add a purchased pack.
	if _, err := svc.Consume(ctx, principal, models.PlanFree, 8, 3); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if err := svc.AddPurchased(ctx, principal, models.PlanFree, 20); err != nil {
		t.Fatalf("AddPurchased() error = %v", err)
	}

	result, err := svc.Consume(ctx, principal, models.PlanFree, 8, 20)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if result.FromDaily != 5 || result.FromPurchased != 15 {
		t.Errorf("split = daily %d / purchased %d, want 5 / 15", result.FromDaily, result.FromPurchased)
	}
	if result.RemainingDaily != 0 || result.RemainingPurchased != 5 {
		t.Errorf("remaining = daily %d / purchased %d, want 0 / 5", result.RemainingDaily, result.RemainingPurchased)
	}

	acct, err := svc.GetOrCreate(ctx, principal, models.PlanFree, 8)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if acct.ConsumedToday != 8 {
		t.Errorf("ConsumedToday = %d, want 8 (only the daily portions)", acct.ConsumedToday)
	}
}

func TestLedgerService_ConsumeInsufficientTokens(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewLedgerService(repos.Ledger, testLogger())
	ctx := context.Background()
	principal := models.NewUserPrincipal("user_2")

	_, err := svc.Consume(ctx, principal, models.PlanFree, 8, 100)
	if err == nil {
		t.Fatal("Consume() error = nil, want InsufficientTokens")
	}
	if apperror.KindOf(err) != apperror.KindInsufficientFunds {
		t.Errorf("Consume() kind = %v, want KindInsufficientFunds", apperror.KindOf(err))
	}
	details := apperror.DetailsOf(err)
	if details["required"] != 100 {
		t.Errorf("details[required] = %v, want 100", details["required"])
	}
}

func TestLedgerService_RefundReversesConsume(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewLedgerService(repos.Ledger, testLogger())
	ctx := context.Background()
	principal := models.NewUserPrincipal("user_3")

	result, err := svc.Consume(ctx, principal, models.PlanFree, 8, 5)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if err := svc.Refund(ctx, principal, models.PlanFree, 8, result); err != nil {
		t.Fatalf("Refund() error = %v", err)
	}

	acct, err := svc.GetOrCreate(ctx, principal, models.PlanFree, 8)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if acct.DailyAvailable != 8 {
		t.Errorf("DailyAvailable = %d, want 8 (fully refunded)", acct.DailyAvailable)
	}
	if acct.ConsumedToday != 0 {
		t.Errorf("ConsumedToday = %d, want 0", acct.ConsumedToday)
	}
}

func TestLedgerService_RefundRestoresBothPools(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewLedgerService(repos.Ledger, testLogger())
	ctx := context.Background()
	principal := models.NewUserPrincipal("user_5")

	if _, err := svc.Consume(ctx, principal, models.PlanFree, 8, 3); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if err := svc.AddPurchased(ctx, principal, models.PlanFree, 10); err != nil {
		t.Fatalf("AddPurchased() error = %v", err)
	}

	// Spills into purchased: 5 daily + 5 purchased.
	result, err := svc.Consume(ctx, principal, models.PlanFree, 8, 10)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if err := svc.Refund(ctx, principal, models.PlanFree, 8, result); err != nil {
		t.Fatalf("Refund() error = %v", err)
	}

	acct, err := svc.GetOrCreate(ctx, principal, models.PlanFree, 8)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if acct.DailyAvailable != 5 {
		t.Errorf("DailyAvailable = %d, want 5 (back to pre-consume)", acct.DailyAvailable)
	}
	if acct.PurchasedAvailable != 10 {
		t.Errorf("PurchasedAvailable = %d, want 10 (back to pre-consume)", acct.PurchasedAvailable)
	}
	if acct.ConsumedToday != 3 {
		t.Errorf("ConsumedToday = %d, want 3 (only the earlier consume remains)", acct.ConsumedToday)
	}
}

func TestLedgerService_PremiumIsUnmetered(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewLedgerService(repos.Ledger, testLogger())
	ctx := context.Background()
	principal := models.NewUserPrincipal("user_4")

	result, err := svc.Consume(ctx, principal, models.PlanPremium, 1_000_000_000, 999_999)
	if err != nil {
		t.Fatalf("Consume() error = %v, want success for Premium", err)
	}
	if result.FromDaily != 0 || result.FromPurchased != 0 {
		t.Errorf("split = daily %d / purchased %d, want 0 / 0 (unmetered)", result.FromDaily, result.FromPurchased)
	}

	acct, err := svc.GetOrCreate(ctx, principal, models.PlanPremium, 1_000_000_000)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if acct.ConsumedToday != 0 {
		t.Errorf("ConsumedToday = %d, want 0", acct.ConsumedToday)
	}
}
