package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/graceverse/study-api/internal/models"
)

// SQLiteReviewRepository implements ReviewRepository for SQLite.
type SQLiteReviewRepository struct {
	db *sql.DB
}

// NewSQLiteReviewRepository creates a new SQLite review repository.
func NewSQLiteReviewRepository(db *sql.DB) *SQLiteReviewRepository {
	return &SQLiteReviewRepository{db: db}
}

func (r *SQLiteReviewRepository) GetVerse(ctx context.Context, userID, verseID string) (*models.MemoryVerse, error) {
	query := `SELECT id, user_id, reference, verse_text, ease_factor, interval_days, repetitions,
		next_review, last_reviewed, total_reviews, mastery_level, preferred_mode, perfect_recalls, created_at
		FROM memory_verses WHERE user_id = ? AND id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, verseID))
}

func (r *SQLiteReviewRepository) GetVerseByReference(ctx context.Context, userID, reference string) (*models.MemoryVerse, error) {
	query := `SELECT id, user_id, reference, verse_text, ease_factor, interval_days, repetitions,
		next_review, last_reviewed, total_reviews, mastery_level, preferred_mode, perfect_recalls, created_at
		FROM memory_verses WHERE user_id = ? AND reference = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, reference))
}

func (r *SQLiteReviewRepository) UpsertVerse(ctx context.Context, v *models.MemoryVerse) error {
	var lastReviewed *string
	if v.LastReviewed != nil {
		s := v.LastReviewed.Format(time.RFC3339)
		lastReviewed = &s
	}
	query := `INSERT INTO memory_verses
		(id, user_id, reference, verse_text, ease_factor, interval_days, repetitions,
		 next_review, last_reviewed, total_reviews, mastery_level, preferred_mode, perfect_recalls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, reference) DO UPDATE SET
			ease_factor = excluded.ease_factor,
			interval_days = excluded.interval_days,
			repetitions = excluded.repetitions,
			next_review = excluded.next_review,
			last_reviewed = excluded.last_reviewed,
			total_reviews = excluded.total_reviews,
			mastery_level = excluded.mastery_level,
			preferred_mode = excluded.preferred_mode,
			perfect_recalls = excluded.perfect_recalls`
	_, err := r.db.ExecContext(ctx, query, v.ID, v.UserID, v.Reference, v.Text, v.EaseFactor, v.IntervalDays,
		v.Repetitions, v.NextReview.Format(time.RFC3339), lastReviewed, v.TotalReviews, v.MasteryLevel,
		v.PreferredMode, v.PerfectRecalls, v.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteReviewRepository) DueVerses(ctx context.Context, userID string, now time.Time, limit int) ([]*models.MemoryVerse, error) {
	query := `SELECT id, user_id, reference, verse_text, ease_factor, interval_days, repetitions,
		next_review, last_reviewed, total_reviews, mastery_level, preferred_mode, perfect_recalls, created_at
		FROM memory_verses WHERE user_id = ? AND next_review <= ? ORDER BY next_review ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, now.Format(time.RFC3339), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verses []*models.MemoryVerse
	for rows.Next() {
		v, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	return verses, rows.Err()
}

func (r *SQLiteReviewRepository) RecordSession(ctx context.Context, s *models.ReviewSession) error {
	query := `INSERT INTO review_sessions
		(id, user_id, verse_id, review_time, quality, confidence, accuracy, mode, hints_used,
		 post_ease, post_interval, post_repetitions, time_spent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.VerseID, s.ReviewTime.Format(time.RFC3339),
		s.Quality, s.Confidence, s.Accuracy, s.Mode, s.HintsUsed, s.PostEase, s.PostInterval, s.PostRepetitions, s.TimeSpent)
	return err
}

func (r *SQLiteReviewRepository) GetModeStats(ctx context.Context, userID, verseID string, mode models.PracticeMode) (*models.PracticeModeStats, error) {
	query := `SELECT user_id, verse_id, mode, times_practiced, success_rate, avg_time_seconds
		FROM practice_mode_stats WHERE user_id = ? AND verse_id = ? AND mode = ?`
	var s models.PracticeModeStats
	var avgTime sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, userID, verseID, mode).Scan(
		&s.UserID, &s.VerseID, &s.Mode, &s.TimesPracticed, &s.SuccessRate, &avgTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if avgTime.Valid {
		v := int(avgTime.Int64)
		s.AvgTimeSeconds = &v
	}
	return &s, nil
}

func (r *SQLiteReviewRepository) UpsertModeStats(ctx context.Context, s *models.PracticeModeStats) error {
	query := `INSERT INTO practice_mode_stats (user_id, verse_id, mode, times_practiced, success_rate, avg_time_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, verse_id, mode) DO UPDATE SET
			times_practiced = excluded.times_practiced,
			success_rate = excluded.success_rate,
			avg_time_seconds = excluded.avg_time_seconds`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.VerseID, s.Mode, s.TimesPracticed, s.SuccessRate, s.AvgTimeSeconds)
	return err
}

func (r *SQLiteReviewRepository) ListModeStats(ctx context.Context, userID, verseID string) ([]*models.PracticeModeStats, error) {
	query := `SELECT user_id, verse_id, mode, times_practiced, success_rate, avg_time_seconds
		FROM practice_mode_stats WHERE user_id = ? AND verse_id = ?`
	rows, err := r.db.QueryContext(ctx, query, userID, verseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*models.PracticeModeStats
	for rows.Next() {
		var s models.PracticeModeStats
		var avgTime sql.NullInt64
		if err := rows.Scan(&s.UserID, &s.VerseID, &s.Mode, &s.TimesPracticed, &s.SuccessRate, &avgTime); err != nil {
			return nil, err
		}
		if avgTime.Valid {
			v := int(avgTime.Int64)
			s.AvgTimeSeconds = &v
		}
		stats = append(stats, &s)
	}
	return stats, rows.Err()
}

func (r *SQLiteReviewRepository) GetDailyGoal(ctx context.Context, userID, date string) (*models.DailyGoal, error) {
	query := `SELECT user_id, date, reviews_done, goal_reviews, achieved_bonus FROM daily_goals WHERE user_id = ? AND date = ?`
	var g models.DailyGoal
	var achievedBonus int
	err := r.db.QueryRowContext(ctx, query, userID, date).Scan(&g.UserID, &g.Date, &g.ReviewsDone, &g.GoalReviews, &achievedBonus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.AchievedBonus = achievedBonus != 0
	return &g, nil
}

func (r *SQLiteReviewRepository) UpsertDailyGoal(ctx context.Context, g *models.DailyGoal) error {
	query := `INSERT INTO daily_goals (user_id, date, reviews_done, goal_reviews, achieved_bonus)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			reviews_done = excluded.reviews_done,
			goal_reviews = excluded.goal_reviews,
			achieved_bonus = excluded.achieved_bonus`
	_, err := r.db.ExecContext(ctx, query, g.UserID, g.Date, g.ReviewsDone, g.GoalReviews, boolToInt(g.AchievedBonus))
	return err
}

func (r *SQLiteReviewRepository) GetStreak(ctx context.Context, userID string) (*models.Streak, error) {
	query := `SELECT user_id, current_streak, longest_streak, last_active_date FROM streaks WHERE user_id = ?`
	var s models.Streak
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.CurrentStreak, &s.LongestStreak, &s.LastActiveDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteReviewRepository) UpsertStreak(ctx context.Context, s *models.Streak) error {
	query := `INSERT INTO streaks (user_id, current_streak, longest_streak, last_active_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_active_date = excluded.last_active_date`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.CurrentStreak, s.LongestStreak, s.LastActiveDate)
	return err
}

func (r *SQLiteReviewRepository) scanOne(row *sql.Row) (*models.MemoryVerse, error) {
	var v models.MemoryVerse
	var lastReviewed sql.NullString
	var nextReview, createdAt string
	var preferredMode sql.NullString

	err := row.Scan(&v.ID, &v.UserID, &v.Reference, &v.Text, &v.EaseFactor, &v.IntervalDays, &v.Repetitions,
		&nextReview, &lastReviewed, &v.TotalReviews, &v.MasteryLevel, &preferredMode, &v.PerfectRecalls, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return finishScan(&v, lastReviewed, nextReview, createdAt, preferredMode)
}

func (r *SQLiteReviewRepository) scanRow(rows *sql.Rows) (*models.MemoryVerse, error) {
	var v models.MemoryVerse
	var lastReviewed sql.NullString
	var nextReview, createdAt string
	var preferredMode sql.NullString

	err := rows.Scan(&v.ID, &v.UserID, &v.Reference, &v.Text, &v.EaseFactor, &v.IntervalDays, &v.Repetitions,
		&nextReview, &lastReviewed, &v.TotalReviews, &v.MasteryLevel, &preferredMode, &v.PerfectRecalls, &createdAt)
	if err != nil {
		return nil, err
	}
	return finishScan(&v, lastReviewed, nextReview, createdAt, preferredMode)
}

func finishScan(v *models.MemoryVerse, lastReviewed sql.NullString, nextReview, createdAt string, preferredMode sql.NullString) (*models.MemoryVerse, error) {
	if lastReviewed.Valid {
		t, _ := time.Parse(time.RFC3339, lastReviewed.String)
		v.LastReviewed = &t
	}
	if preferredMode.Valid {
		v.PreferredMode = models.PracticeMode(preferredMode.String)
	}
	v.NextReview, _ = time.Parse(time.RFC3339, nextReview)
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return v, nil
}
