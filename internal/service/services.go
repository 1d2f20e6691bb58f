// Package service implements the application's business logic: the token
// economy, generation coordination, plan resolution, subscription
// reconciliation, and the spaced-repetition engine.
package service

import (
	"log/slog"

	"github.com/graceverse/study-api/internal/config"
	"github.com/graceverse/study-api/internal/lock"
	"github.com/graceverse/study-api/internal/repository"
)

// Services bundles every service, constructed once at startup and passed
// explicitly to each HTTP handler.
type Services struct {
	Plans        *PlanResolver
	Ledger       *LedgerService
	Generation   *GenerationService
	Subscription *SubscriptionService
	Review       *ReviewService
	Session      *SessionService
}

// New wires every service against its repository and ambient dependencies.
func New(repos *repository.Repositories, llm Generator, locker lock.Locker, cfg *config.Config, logger *slog.Logger) *Services {
	plans := NewPlanResolver(repos.Subscriptions, repos.Ledger)
	ledger := NewLedgerService(repos.Ledger, logger)

	return &Services{
		Plans:        plans,
		Ledger:       ledger,
		Generation:   NewGenerationService(repos.Content, repos.Ownership, ledger, plans, llm, locker, cfg, logger),
		Subscription: NewSubscriptionService(repos.Subscriptions, ledger, locker, cfg, logger),
		Review:       NewReviewService(repos.Reviews, cfg, logger),
		Session:      NewSessionService(repos.Sessions, repos.Ownership, cfg.AnonSessionTTL),
	}
}
