// Package repository defines repository interfaces and SQLite implementations
// for data access.
package repository

import (
	"context"
	"time"

	"github.com/graceverse/study-api/internal/models"
)

// SessionRepository defines methods for anonymous-session data access.
type SessionRepository interface {
	Create(ctx context.Context, s *models.AnonymousSession) error
	GetByID(ctx context.Context, id string) (*models.AnonymousSession, error)
	MarkMigrated(ctx context.Context, id, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ContentRepository defines methods for Artifact (study-guide content) data access.
type ContentRepository interface {
	Create(ctx context.Context, a *models.Artifact) error
	GetByFingerprint(ctx context.Context, fingerprint string, lang models.Language) (*models.Artifact, error)
	GetByID(ctx context.Context, id string) (*models.Artifact, error)
	// DeleteOrphan removes the artifact only if no ownership row references
	// it, reporting whether a row was actually deleted.
	DeleteOrphan(ctx context.Context, artifactID string) (bool, error)
}

// ErrConflict signals Content.Create hit the (fingerprint, language) unique
// index; callers fall through to a re-read.
var ErrConflict = errConflict{}

type errConflict struct{}

func (errConflict) Error() string { return "artifact already exists for (fingerprint, language)" }

// OwnershipRepository defines methods for user/session-to-artifact ownership joins.
type OwnershipRepository interface {
	LinkUser(ctx context.Context, userID, artifactID string, saved bool) error
	LinkAnon(ctx context.Context, sessionID, artifactID string, saved bool, expiresAt time.Time) error
	SetSavedUser(ctx context.Context, userID, artifactID string, saved bool) (bool, error)
	SetSavedAnon(ctx context.Context, sessionID, artifactID string, saved bool) (bool, error)
	ListForUser(ctx context.Context, userID string, savedOnly bool, limit, offset int) ([]models.OwnedArtifact, int, error)
	ListForAnon(ctx context.Context, sessionID string, savedOnly bool, limit, offset int) ([]models.OwnedArtifact, int, error)
	MigrateAnonToUser(ctx context.Context, sessionID, userID string) error
	// DeleteExpiredAnon removes anonymous ownership rows whose expires_at has
	// passed; the referenced artifacts stay (they are globally reusable).
	DeleteExpiredAnon(ctx context.Context, before time.Time) (int64, error)
	// CountReferences reports how many user/anon ownership rows reference artifactID,
	// the same count Content.DeleteOrphan computes for its precondition.
	CountReferences(ctx context.Context, artifactID string) (int, error)
}

// LedgerRepository defines methods for the per-principal token ledger.
type LedgerRepository interface {
	Get(ctx context.Context, userRef string, plan models.Plan) (*models.UserTokenAccount, error)
	// ListByUserRef returns every (userRef, plan) row for a principal, the
	// raw material for the plan resolver's max-priority-wins compensation.
	ListByUserRef(ctx context.Context, userRef string) ([]*models.UserTokenAccount, error)
	Upsert(ctx context.Context, acct *models.UserTokenAccount) error
	AddPurchased(ctx context.Context, userRef string, plan models.Plan, amount int) error
}

// SubscriptionRepository defines methods for subscription reconciliation.
type SubscriptionRepository interface {
	GetByExternalRef(ctx context.Context, externalRef string) (*models.Subscription, error)
	GetActiveForUser(ctx context.Context, userID string) (*models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription) error
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
}

// ReviewRepository defines methods for memory-verse spaced-repetition data access.
type ReviewRepository interface {
	GetVerse(ctx context.Context, userID, verseID string) (*models.MemoryVerse, error)
	GetVerseByReference(ctx context.Context, userID, reference string) (*models.MemoryVerse, error)
	UpsertVerse(ctx context.Context, v *models.MemoryVerse) error
	DueVerses(ctx context.Context, userID string, now time.Time, limit int) ([]*models.MemoryVerse, error)
	RecordSession(ctx context.Context, s *models.ReviewSession) error
	GetModeStats(ctx context.Context, userID, verseID string, mode models.PracticeMode) (*models.PracticeModeStats, error)
	UpsertModeStats(ctx context.Context, s *models.PracticeModeStats) error
	ListModeStats(ctx context.Context, userID, verseID string) ([]*models.PracticeModeStats, error)
	GetDailyGoal(ctx context.Context, userID, date string) (*models.DailyGoal, error)
	UpsertDailyGoal(ctx context.Context, g *models.DailyGoal) error
	GetStreak(ctx context.Context, userID string) (*models.Streak, error)
	UpsertStreak(ctx context.Context, s *models.Streak) error
}

// CatalogRepository defines methods for topic/daily-verse/feedback data access.
type CatalogRepository interface {
	ListTopics(ctx context.Context, categories []string, limit, offset int) ([]*models.Topic, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListDailyVerseTranslations(ctx context.Context, date string) ([]*models.DailyVerse, error)
	UpsertDailyVerse(ctx context.Context, v *models.DailyVerse) error
	CreateFeedback(ctx context.Context, f *models.Feedback) error
}
