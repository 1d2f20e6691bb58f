package service

import (
	"context"

	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
)

// PlanSource records which input won plan resolution, surfaced for
// diagnostics and the token-status endpoint.
type PlanSource string

const (
	PlanSourceSubscription PlanSource = "subscription"
	PlanSourceLedger       PlanSource = "ledger"
	PlanSourceDefault      PlanSource = "default"
)

// PlanResolver is the sole authority for a principal's effective plan.
// Every other component consults it rather than reading Subscription or
// UserTokenAccount rows directly.
type PlanResolver struct {
	subs   repository.SubscriptionRepository
	ledger repository.LedgerRepository
}

func NewPlanResolver(subs repository.SubscriptionRepository, ledger repository.LedgerRepository) *PlanResolver {
	return &PlanResolver{subs: subs, ledger: ledger}
}

// EffectivePlan resolves principal's plan: the higher-priority of the
// active subscription plan and the max-priority ledger row, Free otherwise.
// Anonymous principals are always Free.
func (r *PlanResolver) EffectivePlan(ctx context.Context, principal models.Principal) (models.Plan, PlanSource, error) {
	if principal.IsAnonymous() {
		return models.PlanFree, PlanSourceDefault, nil
	}

	var subPlan models.Plan
	hasSubPlan := false
	sub, err := r.subs.GetActiveForUser(ctx, principal.ID)
	if err != nil {
		return "", "", err
	}
	if sub != nil && (sub.Status == models.SubActive || sub.Status == models.SubPendingCancellation) {
		subPlan = sub.Plan
		hasSubPlan = true
	}

	accounts, err := r.ledger.ListByUserRef(ctx, principal.UserRef())
	if err != nil {
		return "", "", err
	}
	var ledgerPlan models.Plan
	hasLedgerPlan := false
	for _, acct := range accounts {
		if !hasLedgerPlan || acct.Plan.Valid() && models.HigherPriority(acct.Plan, ledgerPlan) == acct.Plan {
			ledgerPlan = acct.Plan
			hasLedgerPlan = true
		}
	}

	resolved := models.PlanFree
	source := PlanSourceDefault
	if hasLedgerPlan && models.HigherPriority(resolved, ledgerPlan) == ledgerPlan {
		resolved = ledgerPlan
		source = PlanSourceLedger
	}
	if hasSubPlan && models.HigherPriority(resolved, subPlan) == subPlan {
		resolved = subPlan
		source = PlanSourceSubscription
	}

	return resolved, source, nil
}
