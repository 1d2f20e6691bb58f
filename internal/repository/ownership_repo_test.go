package repository

import (
	"context"
	"testing"
	"time"

	"github.com/graceverse/study-api/internal/models"
	"github.com/oklog/ulid/v2"
)

func seedArtifact(t *testing.T, repos *Repositories) *models.Artifact {
	t.Helper()
	a := &models.Artifact{
		ID:          ulid.Make().String(),
		Fingerprint: ulid.Make().String(),
		InputKind:   models.InputTopic,
		Language:    models.LangEnglish,
		Content: models.StudyContent{
			Summary:             "s",
			Interpretation:      "i",
			Context:             "c",
			RelatedVerses:       []string{"v"},
			ReflectionQuestions: []string{"q"},
			PrayerPoints:        []string{"p"},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := repos.Content.Create(context.Background(), a); err != nil {
		t.Fatalf("seed Content.Create() error = %v", err)
	}
	return a
}

func TestOwnershipRepository_MigrateAnonToUser(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	sess := &models.AnonymousSession{
		ID:        ulid.Make().String(),
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	if err := repos.Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("Sessions.Create() error = %v", err)
	}

	a := seedArtifact(t, repos)
	if err := repos.Ownership.LinkAnon(ctx, sess.ID, a.ID, true, sess.ExpiresAt); err != nil {
		t.Fatalf("LinkAnon() error = %v", err)
	}

	if err := repos.Ownership.MigrateAnonToUser(ctx, sess.ID, "user_1"); err != nil {
		t.Fatalf("MigrateAnonToUser() error = %v", err)
	}

	owned, total, err := repos.Ownership.ListForUser(ctx, "user_1", false, 10, 0)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if total != 1 || len(owned) != 1 || owned[0].Artifact.ID != a.ID {
		t.Errorf("ListForUser() = %+v (total %d), want [%s]", owned, total, a.ID)
	}
	if !owned[0].IsSaved {
		t.Errorf("ListForUser() IsSaved = false, want true (carried over from anon link)")
	}

	anonOwned, anonTotal, err := repos.Ownership.ListForAnon(ctx, sess.ID, false, 10, 0)
	if err != nil {
		t.Fatalf("ListForAnon() error = %v", err)
	}
	if len(anonOwned) != 0 || anonTotal != 0 {
		t.Errorf("ListForAnon() after migration = %+v (total %d), want empty", anonOwned, anonTotal)
	}
}

func TestOwnershipRepository_SetSavedUser(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	a := seedArtifact(t, repos)
	if err := repos.Ownership.LinkUser(ctx, "user_1", a.ID, false); err != nil {
		t.Fatalf("LinkUser() error = %v", err)
	}
	found, err := repos.Ownership.SetSavedUser(ctx, "user_1", a.ID, true)
	if err != nil {
		t.Fatalf("SetSavedUser() error = %v", err)
	}
	if !found {
		t.Errorf("SetSavedUser() found = false, want true")
	}

	saved, total, err := repos.Ownership.ListForUser(ctx, "user_1", true, 10, 0)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(saved) != 1 || total != 1 {
		t.Errorf("ListForUser(savedOnly) = %+v (total %d), want 1 item", saved, total)
	}

	missing, err := repos.Ownership.SetSavedUser(ctx, "user_1", "nonexistent", true)
	if err != nil {
		t.Fatalf("SetSavedUser() error = %v", err)
	}
	if missing {
		t.Errorf("SetSavedUser() found = true for nonexistent row, want false")
	}
}

func TestOwnershipRepository_DeleteExpiredAnon(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sess := &models.AnonymousSession{
		ID:        ulid.Make().String(),
		CreatedAt: now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
	}
	if err := repos.Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("Sessions.Create() error = %v", err)
	}

	stale := seedArtifact(t, repos)
	live := seedArtifact(t, repos)
	if err := repos.Ownership.LinkAnon(ctx, sess.ID, stale.ID, false, now.Add(-time.Hour)); err != nil {
		t.Fatalf("LinkAnon() error = %v", err)
	}
	if err := repos.Ownership.LinkAnon(ctx, sess.ID, live.ID, false, now.Add(time.Hour)); err != nil {
		t.Fatalf("LinkAnon() error = %v", err)
	}

	n, err := repos.Ownership.DeleteExpiredAnon(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredAnon() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpiredAnon() removed %d rows, want 1", n)
	}

	// The artifact the expired row pointed at stays.
	if got, err := repos.Content.GetByID(ctx, stale.ID); err != nil || got == nil {
		t.Errorf("Content.GetByID() after sweep = %+v, %v, want artifact kept", got, err)
	}

	_, total, err := repos.Ownership.ListForAnon(ctx, sess.ID, false, 10, 0)
	if err != nil {
		t.Fatalf("ListForAnon() error = %v", err)
	}
	if total != 1 {
		t.Errorf("ListForAnon() total = %d, want 1 surviving row", total)
	}
}
