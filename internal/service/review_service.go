package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/config"
	"github.com/graceverse/study-api/internal/models"
	"github.com/graceverse/study-api/internal/repository"
)

// ReviewService drives spaced-repetition scheduling for memorized verses:
// an SM-2 variant with a daily cementing phase and mastery-gated progressive
// spacing, plus the practice-mode stats, mastery, daily-goal and streak side
// effects of one submission.
type ReviewService struct {
	reviews repository.ReviewRepository
	cfg     *config.Config
	logger  *slog.Logger
}

func NewReviewService(reviews repository.ReviewRepository, cfg *config.Config, logger *slog.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, cfg: cfg, logger: logger}
}

// SubmitInput carries one practice submission.
type SubmitInput struct {
	UserID     string
	VerseID    string
	Mode       models.PracticeMode
	Quality    int
	Confidence *int
	Accuracy   *int
	TimeSpent  *int
	HintsUsed  int
}

// SubmitResult is the updated scheduling state returned to the client.
type SubmitResult struct {
	Verse        *models.MemoryVerse
	ModeStats    *models.PracticeModeStats
	DailyGoal    *models.DailyGoal
	Streak       *models.Streak
	BonusAwarded bool
}

// Submit applies one review submission: SM-2 scheduling update, a new
// ReviewSession record, practice-mode stats, mastery recomputation, and
// daily-goal/streak bookkeeping, all as one logical unit of work.
func (s *ReviewService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.Quality < 0 || in.Quality > 5 {
		return nil, apperror.New(apperror.KindValidation, "quality must be between 0 and 5")
	}
	if !in.Mode.Valid() {
		return nil, apperror.New(apperror.KindValidation, "unrecognized practice mode")
	}
	if in.Confidence != nil && (*in.Confidence < 1 || *in.Confidence > 5) {
		return nil, apperror.New(apperror.KindValidation, "confidence must be between 1 and 5")
	}
	if in.Accuracy != nil && (*in.Accuracy < 0 || *in.Accuracy > 100) {
		return nil, apperror.New(apperror.KindValidation, "accuracy must be between 0 and 100")
	}

	verse, err := s.reviews.GetVerse(ctx, in.UserID, in.VerseID)
	if err != nil {
		return nil, fmt.Errorf("get verse: %w", err)
	}
	if verse == nil {
		return nil, apperror.ErrVerseNotFound
	}

	now := time.Now().UTC()
	s.applySM2(verse, in.Quality, now)
	verse.TotalReviews++
	verse.LastReviewed = &now
	if in.Quality == 5 {
		verse.PerfectRecalls++
	}
	if in.Quality >= 3 {
		verse.PreferredMode = in.Mode
	}

	session := &models.ReviewSession{
		ID:              ulid.Make().String(),
		UserID:          in.UserID,
		VerseID:         in.VerseID,
		ReviewTime:      now,
		Quality:         in.Quality,
		Confidence:      in.Confidence,
		Accuracy:        in.Accuracy,
		Mode:            in.Mode,
		HintsUsed:       in.HintsUsed,
		PostEase:        verse.EaseFactor,
		PostInterval:    verse.IntervalDays,
		PostRepetitions: verse.Repetitions,
		TimeSpent:       in.TimeSpent,
	}
	if err := s.reviews.RecordSession(ctx, session); err != nil {
		return nil, fmt.Errorf("record review session: %w", err)
	}

	stats, err := s.updateModeStats(ctx, in, now)
	if err != nil {
		return nil, err
	}

	strongModes, err := s.countStrongModes(ctx, in.UserID, in.VerseID)
	if err != nil {
		return nil, err
	}
	verse.MasteryLevel = models.ResolveMastery(strongModes, verse.PerfectRecalls)

	if err := s.reviews.UpsertVerse(ctx, verse); err != nil {
		return nil, fmt.Errorf("persist verse scheduling: %w", err)
	}

	goal, bonusAwarded, err := s.updateDailyGoal(ctx, in.UserID, now)
	if err != nil {
		return nil, err
	}

	streak, err := s.updateStreak(ctx, in.UserID, in.Quality, now)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{Verse: verse, ModeStats: stats, DailyGoal: goal, Streak: streak, BonusAwarded: bonusAwarded}, nil
}

// applySM2 reschedules verse from one graded recall. A failing quality
// (q < 3) resets the repetition chain; the first DailyPhase successful
// repetitions stay at a one-day interval; after that, only a perfect recall
// advances along the progressive spacing table, while a merely-good one adds
// a single day.
func (s *ReviewService) applySM2(verse *models.MemoryVerse, quality int, now time.Time) {
	q := float64(quality)
	eDelta := 0.1 - (5-q)*(0.08+(5-q)*0.02)
	minEase := s.cfg.MinEaseFactor
	newEase := math.Round((verse.EaseFactor+eDelta)*100) / 100
	if newEase < minEase {
		newEase = minEase
	}
	verse.EaseFactor = newEase

	var newInterval int
	var newReps int
	if quality < 3 {
		newReps = 0
		newInterval = 1
	} else {
		newReps = verse.Repetitions + 1
		switch {
		case newReps <= models.DailyPhase:
			newInterval = 1
		case quality == 5:
			newInterval = models.ProgressiveInterval(newReps - models.DailyPhase)
		default:
			newInterval = verse.IntervalDays + 1
		}
	}

	maxInterval := s.cfg.MaxIntervalDays
	if newInterval > maxInterval {
		newInterval = maxInterval
	}

	verse.Repetitions = newReps
	verse.IntervalDays = newInterval
	verse.NextReview = now.AddDate(0, 0, newInterval)
}

// updateModeStats folds the submission into a running weighted average of
// success_rate (quality>=3 counts as a success) and avg_time_seconds.
func (s *ReviewService) updateModeStats(ctx context.Context, in SubmitInput, now time.Time) (*models.PracticeModeStats, error) {
	stats, err := s.reviews.GetModeStats(ctx, in.UserID, in.VerseID, in.Mode)
	if err != nil {
		return nil, fmt.Errorf("get mode stats: %w", err)
	}
	if stats == nil {
		stats = &models.PracticeModeStats{UserID: in.UserID, VerseID: in.VerseID, Mode: in.Mode}
	}

	success := 0.0
	if in.Quality >= 3 {
		success = 100.0
	}
	n := float64(stats.TimesPracticed)
	stats.SuccessRate = (stats.SuccessRate*n + success) / (n + 1)

	if in.TimeSpent != nil {
		t := float64(*in.TimeSpent)
		if stats.AvgTimeSeconds == nil {
			avg := int(t)
			stats.AvgTimeSeconds = &avg
		} else {
			avg := (float64(*stats.AvgTimeSeconds)*n + t) / (n + 1)
			rounded := int(math.Round(avg))
			stats.AvgTimeSeconds = &rounded
		}
	}
	stats.TimesPracticed++

	if err := s.reviews.UpsertModeStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("persist mode stats: %w", err)
	}
	return stats, nil
}

func (s *ReviewService) countStrongModes(ctx context.Context, userID, verseID string) (int, error) {
	all, err := s.reviews.ListModeStats(ctx, userID, verseID)
	if err != nil {
		return 0, fmt.Errorf("list mode stats: %w", err)
	}
	count := 0
	for _, st := range all {
		if st.Strong() {
			count++
		}
	}
	return count, nil
}

func (s *ReviewService) updateDailyGoal(ctx context.Context, userID string, now time.Time) (*models.DailyGoal, bool, error) {
	date := now.Format("2006-01-02")
	goal, err := s.reviews.GetDailyGoal(ctx, userID, date)
	if err != nil {
		return nil, false, fmt.Errorf("get daily goal: %w", err)
	}
	if goal == nil {
		goal = &models.DailyGoal{UserID: userID, Date: date, GoalReviews: defaultDailyGoalReviews}
	}

	wasAchieved := goal.Achieved()
	goal.ReviewsDone++
	bonusAwarded := false
	if !wasAchieved && goal.Achieved() && !goal.AchievedBonus {
		goal.AchievedBonus = true
		bonusAwarded = true
	}

	if err := s.reviews.UpsertDailyGoal(ctx, goal); err != nil {
		return nil, false, fmt.Errorf("persist daily goal: %w", err)
	}
	return goal, bonusAwarded, nil
}

// defaultDailyGoalReviews seeds a first-time daily goal; clients may raise it
// via a future settings surface (not in scope here).
const defaultDailyGoalReviews = 5

func (s *ReviewService) updateStreak(ctx context.Context, userID string, quality int, now time.Time) (*models.Streak, error) {
	streak, err := s.reviews.GetStreak(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	if streak == nil {
		streak = &models.Streak{UserID: userID}
	}
	if quality < 3 {
		return streak, nil
	}

	today := now.Format("2006-01-02")
	if streak.LastActiveDate == today {
		return streak, nil
	}

	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	if streak.LastActiveDate == yesterday {
		streak.CurrentStreak++
	} else {
		streak.CurrentStreak = 1
	}
	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	streak.LastActiveDate = today

	if err := s.reviews.UpsertStreak(ctx, streak); err != nil {
		return nil, fmt.Errorf("persist streak: %w", err)
	}
	return streak, nil
}
