package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/graceverse/study-api/internal/models"
	"github.com/oklog/ulid/v2"
)

func TestSessionRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	session := &models.AnonymousSession{
		ID:           ulid.Make().String(),
		DeviceFPHash: "abc123",
		CreatedAt:    now,
		ExpiresAt:    now.Add(24 * time.Hour),
	}
	if err := repos.Sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repos.Sessions.GetByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() = nil, want session")
	}
	if got.DeviceFPHash != "abc123" || got.MigratedTo != "" {
		t.Errorf("GetByID() = %+v, want device hash abc123 and no migration", got)
	}
}

func TestSessionRepository_GetByID_Missing(t *testing.T) {
	repos := setupTestRepos(t)

	got, err := repos.Sessions.GetByID(context.Background(), "does_not_exist")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetByID() = %+v, want nil", got)
	}
}

func TestSessionRepository_MarkMigrated(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	now := time.Now().UTC()
	session := &models.AnonymousSession{ID: ulid.Make().String(), CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	if err := repos.Sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repos.Sessions.MarkMigrated(ctx, session.ID, "user_1"); err != nil {
		t.Fatalf("MarkMigrated() error = %v", err)
	}

	got, err := repos.Sessions.GetByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.MigratedTo != "user_1" {
		t.Errorf("MigratedTo = %q, want user_1", got.MigratedTo)
	}

	// A second migration attempt must fail, never overwrite.
	if err := repos.Sessions.MarkMigrated(ctx, session.ID, "user_2"); err != sql.ErrNoRows {
		t.Errorf("second MarkMigrated() error = %v, want sql.ErrNoRows", err)
	}
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	now := time.Now().UTC()
	expired := &models.AnonymousSession{ID: ulid.Make().String(), CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)}
	fresh := &models.AnonymousSession{ID: ulid.Make().String(), CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	if err := repos.Sessions.Create(ctx, expired); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repos.Sessions.Create(ctx, fresh); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	n, err := repos.Sessions.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() removed %d rows, want 1", n)
	}

	if got, _ := repos.Sessions.GetByID(ctx, fresh.ID); got == nil {
		t.Error("fresh session was deleted, want kept")
	}
	if got, _ := repos.Sessions.GetByID(ctx, expired.ID); got != nil {
		t.Error("expired session still present, want deleted")
	}
}
