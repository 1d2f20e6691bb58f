package service

import (
	"context"
	"testing"
	"time"

	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
	"github.com/oklog/ulid/v2"
)

func TestPlanResolver_AnonymousIsAlwaysFree(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	resolver := NewPlanResolver(repos.Subscriptions, repos.Ledger)

	plan, source, err := resolver.EffectivePlan(context.Background(), models.NewAnonymousPrincipal("sess_1"))
	if err != nil {
		t.Fatalf("EffectivePlan() error = %v", err)
	}
	if plan != models.PlanFree || source != PlanSourceDefault {
		t.Errorf("EffectivePlan() = (%v, %v), want (Free, default)", plan, source)
	}
}

func TestPlanResolver_LedgerMaxPriorityWins(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	resolver := NewPlanResolver(repos.Subscriptions, repos.Ledger)
	ctx := context.Background()

	for _, p := range []models.Plan{models.PlanFree, models.PlanPlus, models.PlanStandard} {
		acct := &models.UserTokenAccount{UserRef: "user_1", Plan: p, DailyLimit: 8, LastReset: time.Now().UTC()}
		if err := repos.Ledger.Upsert(ctx, acct); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	plan, source, err := resolver.EffectivePlan(ctx, models.NewUserPrincipal("user_1"))
	if err != nil {
		t.Fatalf("EffectivePlan() error = %v", err)
	}
	if plan != models.PlanPlus || source != PlanSourceLedger {
		t.Errorf("EffectivePlan() = (%v, %v), want (Plus, ledger)", plan, source)
	}
}

func TestPlanResolver_SubscriptionOutranksLedger(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	resolver := NewPlanResolver(repos.Subscriptions, repos.Ledger)
	ctx := context.Background()

	if err := repos.Ledger.Upsert(ctx, &models.UserTokenAccount{UserRef: "user_2", Plan: models.PlanPlus, DailyLimit: 50, LastReset: time.Now().UTC()}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	sub := &models.Subscription{
		ID: ulid.Make().String(), UserID: "user_2", ExternalRef: "ext_1",
		Plan: models.PlanPremium, Status: models.SubActive,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := repos.Subscriptions.Upsert(ctx, sub); err != nil {
		t.Fatalf("Upsert() subscription error = %v", err)
	}

	plan, source, err := resolver.EffectivePlan(ctx, models.NewUserPrincipal("user_2"))
	if err != nil {
		t.Fatalf("EffectivePlan() error = %v", err)
	}
	if plan != models.PlanPremium || source != PlanSourceSubscription {
		t.Errorf("EffectivePlan() = (%v, %v), want (Premium, subscription)", plan, source)
	}
}
