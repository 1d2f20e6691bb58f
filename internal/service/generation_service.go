package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/config"
	"github.com/graceverse/study-api/internal/fingerprint"
	"github.com/graceverse/study-api/internal/lock"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
)

// Generator is the subset of the LLM gateway the coordinator depends on.
type Generator interface {
	Generate(ctx context.Context, kind models.InputKind, rawInput string, lang models.Language) (models.StudyContent, error)
}

// GenerationService deduplicates generation requests by content
// fingerprint, metering tokens only on a cache miss and refunding on every
// failure path after consume.
type GenerationService struct {
	content   repository.ContentRepository
	ownership repository.OwnershipRepository
	ledger    *LedgerService
	plans     *PlanResolver
	llm       Generator
	locker    lock.Locker
	cfg       *config.Config
	logger    *slog.Logger
}

func NewGenerationService(
	content repository.ContentRepository,
	ownership repository.OwnershipRepository,
	ledger *LedgerService,
	plans *PlanResolver,
	llm Generator,
	locker lock.Locker,
	cfg *config.Config,
	logger *slog.Logger,
) *GenerationService {
	return &GenerationService{
		content:   content,
		ownership: ownership,
		ledger:    ledger,
		plans:     plans,
		llm:       llm,
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
	}
}

// GetOrCreateResult is the outcome of GetOrCreate, carrying the token
// accounting the caller reports back to the client. Plan, DailyLimit and
// Consume are always populated, including on a cache hit, so the client's
// token snapshot stays accurate even when nothing was spent.
type GetOrCreateResult struct {
	Artifact   *models.Artifact
	FromCache  bool
	Plan       models.Plan
	DailyLimit int
	Cost       int
	Consume    ConsumeResult
}

// Peek reports whether content already exists for (kind, rawInput, lang)
// without consuming tokens or attaching ownership — used by the HTTP layer
// to decide whether a request is a generation MISS before the rate limiter
// and the full GetOrCreate flow run; rate limits apply only to MISS paths.
func (s *GenerationService) Peek(ctx context.Context, kind models.InputKind, rawInput string, lang models.Language) (*models.Artifact, error) {
	fp := fingerprint.Compute(kind, rawInput, lang)
	return s.content.GetByFingerprint(ctx, fp, lang)
}

// snapshot reads the caller's current ledger account without consuming,
// applying the daily reset if due, so a cache hit can report real token
// state alongside cost:0.
func (s *GenerationService) snapshot(ctx context.Context, principal models.Principal, plan models.Plan, dailyLimit int) (ConsumeResult, error) {
	acct, err := s.ledger.GetOrCreate(ctx, principal, plan, dailyLimit)
	if err != nil {
		return ConsumeResult{}, err
	}
	return ConsumeResult{RemainingDaily: acct.DailyAvailable, RemainingPurchased: acct.PurchasedAvailable}, nil
}

// GetOrCreate returns the cached artifact for (kind, rawInput, lang) or
// generates and persists a new one, holding the per-fingerprint lock so
// concurrent callers trigger at most one provider call.
func (s *GenerationService) GetOrCreate(ctx context.Context, principal models.Principal, kind models.InputKind, rawInput string, lang models.Language) (*GetOrCreateResult, error) {
	fp := fingerprint.Compute(kind, rawInput, lang)

	plan, _, err := s.plans.EffectivePlan(ctx, principal)
	if err != nil {
		return nil, err
	}
	cost := s.cfg.Cost(lang)
	dailyLimit := s.cfg.PlanLimits[plan]

	if a, err := s.content.GetByFingerprint(ctx, fp, lang); err != nil {
		return nil, err
	} else if a != nil {
		if err := s.attachOwnership(ctx, principal, a.ID); err != nil {
			return nil, err
		}
		snap, err := s.snapshot(ctx, principal, plan, dailyLimit)
		if err != nil {
			return nil, err
		}
		return &GetOrCreateResult{Artifact: a, FromCache: true, Plan: plan, DailyLimit: dailyLimit, Consume: snap}, nil
	}

	consumeResult, err := s.ledger.Consume(ctx, principal, plan, dailyLimit, cost)
	if err != nil {
		return nil, err
	}

	// Compensating refunds must still land if the client disconnects
	// mid-request, so they run on a context that survives cancellation.
	cleanupCtx := context.WithoutCancel(ctx)

	release, err := s.locker.Acquire(ctx, fp, 90*time.Second)
	if err != nil {
		_ = s.ledger.Refund(cleanupCtx, principal, plan, dailyLimit, consumeResult)
		return nil, err
	}
	defer release()

	// Re-check under the lock: another caller may have inserted the
	// artifact between our first read and acquiring the lock.
	if a, err := s.content.GetByFingerprint(ctx, fp, lang); err != nil {
		_ = s.ledger.Refund(cleanupCtx, principal, plan, dailyLimit, consumeResult)
		return nil, err
	} else if a != nil {
		// Refund before attaching: an attach failure must not leave the
		// charge in place for a request that produced nothing usable.
		_ = s.ledger.Refund(cleanupCtx, principal, plan, dailyLimit, consumeResult)
		if err := s.attachOwnership(ctx, principal, a.ID); err != nil {
			return nil, err
		}
		snap, err := s.snapshot(ctx, principal, plan, dailyLimit)
		if err != nil {
			return nil, err
		}
		return &GetOrCreateResult{Artifact: a, FromCache: true, Plan: plan, DailyLimit: dailyLimit, Consume: snap}, nil
	}

	content, err := s.llm.Generate(ctx, kind, rawInput, lang)
	if err != nil {
		_ = s.ledger.Refund(cleanupCtx, principal, plan, dailyLimit, consumeResult)
		return nil, err
	}

	artifact := &models.Artifact{
		ID:          ulid.Make().String(),
		Fingerprint: fp,
		InputKind:   kind,
		RawInput:    rawInput,
		Language:    lang,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.content.Create(ctx, artifact); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race despite the lock: someone else inserted first.
			existing, readErr := s.content.GetByFingerprint(ctx, fp, lang)
			if readErr != nil {
				_ = s.ledger.Refund(cleanupCtx, principal, plan, dailyLimit, consumeResult)
				return nil, readErr
			}
			if existing == nil {
				_ = s.ledger.Refund(cleanupCtx, principal, plan, dailyLimit, consumeResult)
				return nil, apperror.Wrap(apperror.KindInternal, "artifact conflict but not found on re-read", err)
			}
			_ = s.ledger.Refund(cleanupCtx, principal, plan, dailyLimit, consumeResult)
			if attachErr := s.attachOwnership(ctx, principal, existing.ID); attachErr != nil {
				return nil, attachErr
			}
			snap, snapErr := s.snapshot(ctx, principal, plan, dailyLimit)
			if snapErr != nil {
				return nil, snapErr
			}
			return &GetOrCreateResult{Artifact: existing, FromCache: true, Plan: plan, DailyLimit: dailyLimit, Consume: snap}, nil
		}
		_ = s.ledger.Refund(cleanupCtx, principal, plan, dailyLimit, consumeResult)
		return nil, err
	}

	if err := s.attachOwnership(ctx, principal, artifact.ID); err != nil {
		_ = s.ledger.Refund(cleanupCtx, principal, plan, dailyLimit, consumeResult)
		return nil, err
	}

	return &GetOrCreateResult{
		Artifact:   artifact,
		FromCache:  false,
		Plan:       plan,
		DailyLimit: dailyLimit,
		Cost:       cost,
		Consume:    consumeResult,
	}, nil
}

func (s *GenerationService) attachOwnership(ctx context.Context, principal models.Principal, artifactID string) error {
	if principal.IsUser() {
		return s.ownership.LinkUser(ctx, principal.ID, artifactID, false)
	}
	return s.ownership.LinkAnon(ctx, principal.ID, artifactID, false, time.Now().UTC().Add(24*time.Hour))
}
