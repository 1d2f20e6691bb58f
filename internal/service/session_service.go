package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
)

// SessionService orchestrates the anonymous-session lifecycle: creation and
// the one-way migration to an authenticated user, which transfers ownership
// rows and freezes the session.
type SessionService struct {
	sessions  repository.SessionRepository
	ownership repository.OwnershipRepository
	ttl       time.Duration
}

func NewSessionService(sessions repository.SessionRepository, ownership repository.OwnershipRepository, ttl time.Duration) *SessionService {
	return &SessionService{sessions: sessions, ownership: ownership, ttl: ttl}
}

// CreateAnonymous issues a new 24h anonymous session. deviceFingerprint, if
// supplied, is hashed before storage; the raw value is never persisted.
func (s *SessionService) CreateAnonymous(ctx context.Context, deviceFingerprint string) (*models.AnonymousSession, error) {
	now := time.Now().UTC()
	session := &models.AnonymousSession{
		ID:        ulid.Make().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if deviceFingerprint != "" {
		sum := sha256.Sum256([]byte(deviceFingerprint))
		session.DeviceFPHash = hex.EncodeToString(sum[:])
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create anonymous session: %w", err)
	}
	return session, nil
}

// MigrateToUser transfers every artifact owned by sessionID to userID and
// freezes the session, rejecting a session that is already expired or
// already migrated.
func (s *SessionService) MigrateToUser(ctx context.Context, sessionID, userID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("look up anonymous session: %w", err)
	}
	if session == nil {
		return apperror.ErrSessionNotFound
	}
	if session.Frozen() {
		return apperror.ErrSessionFrozen
	}
	if session.Expired(time.Now().UTC()) {
		return apperror.ErrSessionExpired
	}

	if err := s.ownership.MigrateAnonToUser(ctx, sessionID, userID); err != nil {
		return fmt.Errorf("migrate ownership: %w", err)
	}
	if err := s.sessions.MarkMigrated(ctx, sessionID, userID); err != nil {
		return fmt.Errorf("freeze session: %w", err)
	}
	return nil
}

// SweepExpired deletes anonymous ownership rows and sessions whose TTL has
// passed. Artifacts referenced by swept rows are left in place.
func (s *SessionService) SweepExpired(ctx context.Context) (sessions, ownerships int64, err error) {
	now := time.Now().UTC()
	ownerships, err = s.ownership.DeleteExpiredAnon(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("sweep expired ownership: %w", err)
	}
	sessions, err = s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return sessions, ownerships, fmt.Errorf("sweep expired sessions: %w", err)
	}
	return sessions, ownerships, nil
}

// StartSweeper runs SweepExpired every interval until ctx is cancelled.
func (s *SessionService) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions, ownerships, err := s.SweepExpired(ctx)
				if err != nil {
					logger.Warn("expired-session sweep failed", "error", err)
					continue
				}
				if sessions > 0 || ownerships > 0 {
					logger.Info("swept expired anonymous state", "sessions", sessions, "ownership_rows", ownerships)
				}
			}
		}
	}()
}
