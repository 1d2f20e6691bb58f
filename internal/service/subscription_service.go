package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/config"
	"github.com/graceverse/study-api/internal/lock"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
)

// transitionOutcome classifies how a state-machine cell should be applied.
type transitionOutcome int

const (
	transitionReject transitionOutcome = iota // event not legal from this status
	transitionNoop                            // idempotent, status unchanged
	transitionChange                          // moves to a new status
)

type transitionCell struct {
	outcome transitionOutcome
	to      models.SubStatus
}

// transitionTable is the subscription state machine: rows are from-status
// (the no-row case is handled separately), columns are webhook events.
var transitionTable = map[models.SubStatus]map[models.WebhookEvent]transitionCell{
	models.SubPending: {
		models.EventSubscriptionCreated:       {transitionChange, models.SubPending},
		models.EventSubscriptionActivated:     {transitionChange, models.SubActive},
		models.EventSubscriptionPendingCancel: {transitionReject, ""},
		models.EventSubscriptionCancelled:     {transitionChange, models.SubCancelled},
		models.EventSubscriptionExpired:       {transitionReject, ""},
		models.EventSubscriptionPaymentFailed: {transitionChange, models.SubPastDue},
	},
	models.SubActive: {
		models.EventSubscriptionCreated:       {transitionChange, models.SubActive},
		models.EventSubscriptionActivated:     {transitionChange, models.SubActive},
		models.EventSubscriptionPendingCancel: {transitionChange, models.SubPendingCancellation},
		models.EventSubscriptionCancelled:     {transitionChange, models.SubCancelled},
		models.EventSubscriptionExpired:       {transitionChange, models.SubExpired},
		models.EventSubscriptionPaymentFailed: {transitionChange, models.SubPastDue},
	},
	models.SubPendingCancellation: {
		models.EventSubscriptionCreated:       {transitionNoop, models.SubPendingCancellation},
		models.EventSubscriptionActivated:     {transitionChange, models.SubActive},
		models.EventSubscriptionPendingCancel: {transitionChange, models.SubPendingCancellation},
		models.EventSubscriptionCancelled:     {transitionChange, models.SubCancelled},
		models.EventSubscriptionExpired:       {transitionChange, models.SubExpired},
		models.EventSubscriptionPaymentFailed: {transitionChange, models.SubPastDue},
	},
	models.SubPastDue: {
		models.EventSubscriptionCreated:       {transitionNoop, models.SubPastDue},
		models.EventSubscriptionActivated:     {transitionChange, models.SubActive},
		models.EventSubscriptionPendingCancel: {transitionReject, ""},
		models.EventSubscriptionCancelled:     {transitionChange, models.SubCancelled},
		models.EventSubscriptionExpired:       {transitionChange, models.SubExpired},
		models.EventSubscriptionPaymentFailed: {transitionChange, models.SubPastDue},
	},
	models.SubCancelled: {
		models.EventSubscriptionCreated:       {transitionReject, ""},
		models.EventSubscriptionActivated:     {transitionReject, ""},
		models.EventSubscriptionPendingCancel: {transitionReject, ""},
		models.EventSubscriptionCancelled:     {transitionNoop, models.SubCancelled},
		models.EventSubscriptionExpired:       {transitionNoop, models.SubCancelled},
		models.EventSubscriptionPaymentFailed: {transitionReject, ""},
	},
	models.SubExpired: {
		models.EventSubscriptionCreated:       {transitionReject, ""},
		models.EventSubscriptionActivated:     {transitionReject, ""},
		models.EventSubscriptionPendingCancel: {transitionReject, ""},
		models.EventSubscriptionCancelled:     {transitionNoop, models.SubExpired},
		models.EventSubscriptionExpired:       {transitionNoop, models.SubExpired},
		models.EventSubscriptionPaymentFailed: {transitionReject, ""},
	},
}

// SubscriptionService reconciles payment-gateway webhook events into local
// subscription state: raw-body HMAC verification, idempotent event
// application, state-machine transitions, and ledger sync so plan changes
// affect metering immediately.
type SubscriptionService struct {
	subs   repository.SubscriptionRepository
	ledger *LedgerService
	locker lock.Locker
	cfg    *config.Config
	logger *slog.Logger
}

func NewSubscriptionService(subs repository.SubscriptionRepository, ledger *LedgerService, locker lock.Locker, cfg *config.Config, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{subs: subs, ledger: ledger, locker: locker, cfg: cfg, logger: logger}
}

// VerifySignature checks that sigHex is the hex-encoded HMAC-SHA256 of
// rawBody under the configured payments webhook secret.
func (s *SubscriptionService) VerifySignature(rawBody []byte, sigHex string) bool {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.PaymentsWebhookSecret))
	mac.Write(rawBody)
	return hmac.Equal(sig, mac.Sum(nil))
}

// ProcessEvent applies one webhook event to the subscription identified by
// externalRef. eventID gates idempotent re-delivery.
func (s *SubscriptionService) ProcessEvent(ctx context.Context, eventID, externalRef, userID string, plan models.Plan, event models.WebhookEvent) error {
	if !plan.Valid() {
		return apperror.New(apperror.KindValidation, "unrecognized plan code")
	}

	// Transitions for one subscription are serialized so concurrent webhook
	// deliveries cannot interleave reads and writes of the same row.
	release, err := s.locker.Acquire(ctx, "subscription:"+externalRef, 10*time.Second)
	if err != nil {
		return fmt.Errorf("acquire subscription lock: %w", err)
	}
	defer release()

	fresh, err := s.subs.MarkEventProcessed(ctx, eventID)
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	if !fresh {
		s.logger.Info("webhook event already processed, skipping", "event_id", eventID)
		return nil
	}

	existing, err := s.subs.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return fmt.Errorf("look up subscription: %w", err)
	}

	now := time.Now().UTC()

	if existing == nil {
		if event != models.EventSubscriptionCreated {
			return apperror.New(apperror.KindValidation, "subscription event received for unknown subscription")
		}
		sub := &models.Subscription{
			ID:          ulid.Make().String(),
			UserID:      userID,
			ExternalRef: externalRef,
			Plan:        plan,
			Status:      models.SubPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.subs.Upsert(ctx, sub)
	}

	cell, ok := transitionTable[existing.Status][event]
	if !ok || cell.outcome == transitionReject {
		return apperror.New(apperror.KindValidation, fmt.Sprintf("invalid transition %s -> %s", existing.Status, event))
	}
	if cell.outcome == transitionNoop {
		return nil
	}

	existing.Status = cell.to
	existing.Plan = plan
	existing.UpdatedAt = now
	if err := s.subs.Upsert(ctx, existing); err != nil {
		return fmt.Errorf("persist subscription transition: %w", err)
	}

	// A subscription in its current period (including one waiting out a
	// pending cancellation) drives the ledger row for its plan.
	if existing.Status == models.SubActive || existing.Status == models.SubPendingCancellation {
		dailyLimit := s.cfg.PlanLimits[plan]
		if err := s.ledger.SyncPlanLimits(ctx, models.NewUserPrincipal(existing.UserID), plan, dailyLimit); err != nil {
			return fmt.Errorf("sync ledger after subscription transition: %w", err)
		}
	}

	s.logger.Info("subscription transitioned", "external_ref", externalRef, "event", event, "to_status", existing.Status)
	return nil
}
