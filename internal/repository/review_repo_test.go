package repository

import (
	"context"
	"testing"
	"time"

	"github.com/graceverse/study-api/internal/models"
	"github.com/oklog/ulid/v2"
)

func seedVerse(t *testing.T, repos *Repositories, userID, reference string) *models.MemoryVerse {
	t.Helper()
	v := &models.MemoryVerse{
		ID:           ulid.Make().String(),
		UserID:       userID,
		Reference:    reference,
		Text:         "In the beginning...",
		EaseFactor:   2.5,
		IntervalDays: 0,
		Repetitions:  0,
		NextReview:   time.Now().UTC(),
		MasteryLevel: models.MasteryBeginner,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repos.Reviews.UpsertVerse(context.Background(), v); err != nil {
		t.Fatalf("seed UpsertVerse() error = %v", err)
	}
	return v
}

func TestReviewRepository_UpsertAndGetVerse(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	v := seedVerse(t, repos, "user_1", "Genesis 1:1")

	got, err := repos.Reviews.GetVerseByReference(ctx, "user_1", "Genesis 1:1")
	if err != nil {
		t.Fatalf("GetVerseByReference() error = %v", err)
	}
	if got == nil || got.ID != v.ID {
		t.Fatalf("GetVerseByReference() = %+v, want %s", got, v.ID)
	}

	got.Repetitions = 3
	got.EaseFactor = 2.6
	if err := repos.Reviews.UpsertVerse(ctx, got); err != nil {
		t.Fatalf("UpsertVerse() update error = %v", err)
	}

	again, err := repos.Reviews.GetVerse(ctx, "user_1", v.ID)
	if err != nil {
		t.Fatalf("GetVerse() error = %v", err)
	}
	if again.Repetitions != 3 || again.EaseFactor != 2.6 {
		t.Errorf("GetVerse() = %+v, want Repetitions=3 EaseFactor=2.6", again)
	}
}

func TestReviewRepository_DueVerses(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due := seedVerse(t, repos, "user_2", "John 3:16")
	due.NextReview = now.Add(-time.Hour)
	if err := repos.Reviews.UpsertVerse(ctx, due); err != nil {
		t.Fatalf("UpsertVerse() error = %v", err)
	}

	notDue := seedVerse(t, repos, "user_2", "Psalm 23:1")
	notDue.NextReview = now.Add(24 * time.Hour)
	if err := repos.Reviews.UpsertVerse(ctx, notDue); err != nil {
		t.Fatalf("UpsertVerse() error = %v", err)
	}

	verses, err := repos.Reviews.DueVerses(ctx, "user_2", now, 10)
	if err != nil {
		t.Fatalf("DueVerses() error = %v", err)
	}
	if len(verses) != 1 || verses[0].ID != due.ID {
		t.Errorf("DueVerses() = %+v, want only %s", verses, due.ID)
	}
}

func TestReviewRepository_RecordSessionAndModeStats(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	v := seedVerse(t, repos, "user_3", "Romans 8:28")

	session := &models.ReviewSession{
		ID:              ulid.Make().String(),
		UserID:          "user_3",
		VerseID:         v.ID,
		ReviewTime:      time.Now().UTC(),
		Quality:         5,
		Mode:            models.ModeFlipCard,
		PostEase:        2.6,
		PostInterval:    1,
		PostRepetitions: 1,
	}
	if err := repos.Reviews.RecordSession(ctx, session); err != nil {
		t.Fatalf("RecordSession() error = %v", err)
	}

	stats := &models.PracticeModeStats{
		UserID:         "user_3",
		VerseID:        v.ID,
		Mode:           models.ModeFlipCard,
		TimesPracticed: 5,
		SuccessRate:    100,
	}
	if err := repos.Reviews.UpsertModeStats(ctx, stats); err != nil {
		t.Fatalf("UpsertModeStats() error = %v", err)
	}

	got, err := repos.Reviews.GetModeStats(ctx, "user_3", v.ID, models.ModeFlipCard)
	if err != nil {
		t.Fatalf("GetModeStats() error = %v", err)
	}
	if got == nil || !got.Strong() {
		t.Errorf("GetModeStats() = %+v, want a Strong() mode", got)
	}

	all, err := repos.Reviews.ListModeStats(ctx, "user_3", v.ID)
	if err != nil {
		t.Fatalf("ListModeStats() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListModeStats() returned %d rows, want 1", len(all))
	}
}

func TestReviewRepository_DailyGoalAndStreak(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	goal := &models.DailyGoal{
		UserID:      "user_4",
		Date:        "2026-07-29",
		ReviewsDone: 3,
		GoalReviews: 5,
	}
	if err := repos.Reviews.UpsertDailyGoal(ctx, goal); err != nil {
		t.Fatalf("UpsertDailyGoal() error = %v", err)
	}
	got, err := repos.Reviews.GetDailyGoal(ctx, "user_4", "2026-07-29")
	if err != nil {
		t.Fatalf("GetDailyGoal() error = %v", err)
	}
	if got == nil || got.Achieved() {
		t.Errorf("GetDailyGoal() = %+v, want not achieved", got)
	}

	streak := &models.Streak{UserID: "user_4", CurrentStreak: 4, LongestStreak: 10, LastActiveDate: "2026-07-28"}
	if err := repos.Reviews.UpsertStreak(ctx, streak); err != nil {
		t.Fatalf("UpsertStreak() error = %v", err)
	}
	gotStreak, err := repos.Reviews.GetStreak(ctx, "user_4")
	if err != nil {
		t.Fatalf("GetStreak() error = %v", err)
	}
	if gotStreak == nil || gotStreak.CurrentStreak != 4 {
		t.Errorf("GetStreak() = %+v, want CurrentStreak=4", gotStreak)
	}
}
