package service

import (
	"context"
	"testing"
	"time"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
	"github.com/oklog/ulid/v2"
)

func TestSessionService_CreateAnonymous_HashesDeviceFingerprint(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewSessionService(repos.Sessions, repos.Ownership, 24*time.Hour)

	session, err := svc.CreateAnonymous(context.Background(), "device-123")
	if err != nil {
		t.Fatalf("CreateAnonymous() error = %v", err)
	}
	if session.DeviceFPHash == "" || session.DeviceFPHash == "device-123" {
		t.Errorf("DeviceFPHash = %q, want hashed value, not plaintext", session.DeviceFPHash)
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		t.Errorf("ExpiresAt = %v, want after CreatedAt %v", session.ExpiresAt, session.CreatedAt)
	}
}

func TestSessionService_MigrateToUser_TransfersOwnershipAndFreezes(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewSessionService(repos.Sessions, repos.Ownership, 24*time.Hour)
	ctx := context.Background()

	session, err := svc.CreateAnonymous(ctx, "")
	if err != nil {
		t.Fatalf("CreateAnonymous() error = %v", err)
	}

	artifact := &models.Artifact{
		ID: ulid.Make().String(), Fingerprint: "fp1", InputKind: models.InputScripture,
		Language: models.LangEnglish, Content: validStudyContent(), CreatedAt: time.Now().UTC(),
	}
	if err := repos.Content.Create(ctx, artifact); err != nil {
		t.Fatalf("Content.Create() error = %v", err)
	}
	if err := repos.Ownership.LinkAnon(ctx, session.ID, artifact.ID, false, session.ExpiresAt); err != nil {
		t.Fatalf("LinkAnon() error = %v", err)
	}

	if err := svc.MigrateToUser(ctx, session.ID, "user_1"); err != nil {
		t.Fatalf("MigrateToUser() error = %v", err)
	}

	owned, total, err := repos.Ownership.ListForUser(ctx, "user_1", false, 10, 0)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if total != 1 || len(owned) != 1 || owned[0].Artifact.ID != artifact.ID {
		t.Errorf("ListForUser() = %+v (total %d), want 1 row for artifact %s", owned, total, artifact.ID)
	}

	_, anonTotal, err := repos.Ownership.ListForAnon(ctx, session.ID, false, 10, 0)
	if err != nil {
		t.Fatalf("ListForAnon() error = %v", err)
	}
	if anonTotal != 0 {
		t.Errorf("ListForAnon() total = %d, want 0 after migration", anonTotal)
	}

	// A frozen session rejects a second migration.
	if err := svc.MigrateToUser(ctx, session.ID, "user_2"); err != apperror.ErrSessionFrozen {
		t.Errorf("second MigrateToUser() error = %v, want ErrSessionFrozen", err)
	}
}

func TestSessionService_MigrateToUser_ExpiredSession(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewSessionService(repos.Sessions, repos.Ownership, 24*time.Hour)
	ctx := context.Background()

	now := time.Now().UTC()
	session := &models.AnonymousSession{
		ID: ulid.Make().String(), CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour),
	}
	if err := repos.Sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.MigrateToUser(ctx, session.ID, "user_1"); err != apperror.ErrSessionExpired {
		t.Errorf("MigrateToUser() error = %v, want ErrSessionExpired", err)
	}
}

func TestSessionService_MigrateToUser_UnknownSession(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewSessionService(repos.Sessions, repos.Ownership, 24*time.Hour)

	err := svc.MigrateToUser(context.Background(), "does_not_exist", "user_1")
	if err != apperror.ErrSessionNotFound {
		t.Errorf("MigrateToUser() error = %v, want ErrSessionNotFound", err)
	}
}
