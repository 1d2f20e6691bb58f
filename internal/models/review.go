package models

import "time"

// PracticeMode is one of the supported memory-verse drill styles.
type PracticeMode string

const (
	ModeFlipCard     PracticeMode = "flip_card"
	ModeTypeItOut    PracticeMode = "type_it_out"
	ModeCloze        PracticeMode = "cloze"
	ModeFirstLetter  PracticeMode = "first_letter"
	ModeProgressive  PracticeMode = "progressive"
	ModeWordScramble PracticeMode = "word_scramble"
	ModeWordBank     PracticeMode = "word_bank"
	ModeAudio        PracticeMode = "audio"
)

// Valid reports whether m is a recognized practice mode.
func (m PracticeMode) Valid() bool {
	switch m {
	case ModeFlipCard, ModeTypeItOut, ModeCloze, ModeFirstLetter, ModeProgressive,
		ModeWordScramble, ModeWordBank, ModeAudio:
		return true
	}
	return false
}

// MasteryLevel ranks a user's command of a verse across practice modes.
type MasteryLevel string

const (
	MasteryBeginner     MasteryLevel = "beginner"
	MasteryIntermediate MasteryLevel = "intermediate"
	MasteryAdvanced     MasteryLevel = "advanced"
	MasteryExpert       MasteryLevel = "expert"
	MasteryMaster       MasteryLevel = "master"
)

// masteryThresholds gives the minimum count of "strong" practice modes
// (success_rate >= 80 and times_practiced >= 5) and lifetime perfect recalls
// required for each level beyond Beginner.
type masteryThreshold struct {
	level          MasteryLevel
	strongModes    int
	perfectRecalls int
}

var masteryThresholds = []masteryThreshold{
	{MasteryMaster, 8, 50},
	{MasteryExpert, 6, 30},
	{MasteryAdvanced, 4, 15},
	{MasteryIntermediate, 2, 5},
}

// ResolveMastery walks the thresholds from highest to lowest and returns the
// first one a verse with strongModes/perfectRecalls qualifies for.
func ResolveMastery(strongModes, perfectRecalls int) MasteryLevel {
	for _, t := range masteryThresholds {
		if strongModes >= t.strongModes && perfectRecalls >= t.perfectRecalls {
			return t.level
		}
	}
	return MasteryBeginner
}

// DailyPhase is how many successful reviews a verse spends in the cementing
// phase (interval fixed at 1 day) before progressive spacing takes over.
const DailyPhase = 14

// progressiveIntervals are the day-offsets used once a verse graduates the
// cementing phase and the submission quality is a perfect 5 (mastered).
var progressiveIntervals = []int{3, 7, 14, 21, 30, 45, 60, 90, 120, 150, 180}

// ProgressiveInterval returns the day-offset for the n'th post-cementing
// mastered review (n = repetitions - DailyPhase, 1-indexed), saturating at
// the final entry for n beyond the table's length.
func ProgressiveInterval(n int) int {
	idx := n - 1
	if idx >= len(progressiveIntervals) {
		idx = len(progressiveIntervals) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return progressiveIntervals[idx]
}

// MemoryVerse tracks one user's spaced-repetition state for a single verse reference.
type MemoryVerse struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Reference      string       `json:"reference"`
	Text           string       `json:"text"`
	EaseFactor     float64      `json:"ease_factor"`   // >= MinEaseFactor (default 1.3)
	IntervalDays   int          `json:"interval_days"` // >= 0
	Repetitions    int          `json:"repetitions"`   // >= 0, consecutive non-failing submissions
	NextReview     time.Time    `json:"next_review"`
	LastReviewed   *time.Time   `json:"last_reviewed,omitempty"`
	TotalReviews   int          `json:"total_reviews"`
	MasteryLevel   MasteryLevel `json:"mastery_level"`
	PreferredMode  PracticeMode `json:"preferred_mode,omitempty"` // "" if unset
	PerfectRecalls int          `json:"perfect_recalls"`          // lifetime count of quality==5 submissions, drives mastery
	CreatedAt      time.Time    `json:"created_at"`
}

// Cementing reports whether v is still in its initial fixed-cadence phase.
func (v MemoryVerse) Cementing() bool {
	return v.Repetitions <= DailyPhase
}

// PracticeModeStats aggregates a user's historical accuracy and timing within
// one mode for one verse, keyed by (user_id, verse_id, mode).
type PracticeModeStats struct {
	UserID         string       `json:"user_id"`
	VerseID        string       `json:"verse_id"`
	Mode           PracticeMode `json:"mode"`
	TimesPracticed int          `json:"times_practiced"`
	SuccessRate    float64      `json:"success_rate"`               // running weighted average, 0-100
	AvgTimeSeconds *int         `json:"avg_time_seconds,omitempty"` // nil until a submission reports time_spent
}

// Strong reports whether stats qualify as a "strong" mode for mastery
// purposes: success_rate >= 80 and times_practiced >= 5.
func (s PracticeModeStats) Strong() bool {
	return s.SuccessRate >= 80 && s.TimesPracticed >= 5
}

// ReviewSession is one submitted practice attempt against a MemoryVerse,
// append-only.
type ReviewSession struct {
	ID              string
	UserID          string
	VerseID         string
	ReviewTime      time.Time
	Quality         int  // 0-5
	Confidence      *int // 1-5
	Accuracy        *int // 0-100
	Mode            PracticeMode
	HintsUsed       int
	PostEase        float64
	PostInterval    int
	PostRepetitions int
	TimeSpent       *int // seconds
}

// DailyGoal tracks one user's review-count goal progress for a single UTC day.
type DailyGoal struct {
	UserID        string `json:"user_id"`
	Date          string `json:"date"` // YYYY-MM-DD UTC
	ReviewsDone   int    `json:"reviews_done"`
	GoalReviews   int    `json:"goal_reviews"`
	AchievedBonus bool   `json:"achieved_bonus"` // true once the first-time bonus has been granted for Date
}

// Achieved reports whether the goal has been met for the day.
func (g DailyGoal) Achieved() bool {
	return g.GoalReviews > 0 && g.ReviewsDone >= g.GoalReviews
}

// GoalBonusXP is the one-time bonus granted the first time a daily goal is met.
const GoalBonusXP = 50

// Streak tracks a user's consecutive-UTC-days-with-a-successful-submission streak.
type Streak struct {
	UserID         string `json:"user_id"`
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	LastActiveDate string `json:"last_active_date"` // YYYY-MM-DD UTC of the last successful (quality>=3) submission
}
