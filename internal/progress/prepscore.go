// Package progress computes learner-facing dashboard data: the prep score,
// grammar-error summaries, and activity streaks.
package progress

import "math"

// Time ranges accepted by the prep score calculator.
const (
	RangeToday = "today"
	RangeWeek  = "week"
	RangeMonth = "month"
)

// todayOralBoost is the multiplier applied to the speaking/listening
// sub-score when viewing the "today" range. Applied before normalization.
const todayOralBoost = 3.0

// PrepInputs are the raw counters feeding the prep score.
type PrepInputs struct {
	LessonsCompleted   int
	SpeakingPct        float64
	ListeningPct       float64
	ReadingPct         float64
	WritingPct         float64
	TestAttempts       int
	DaysSinceActive    int
	VocabularyMastered int
	StreakDays         int
	TimeRange          string
}

// Component caps. Raw counters saturate at these values so a single
// dimension cannot dominate the score.
const (
	maxLessons  = 20
	maxAttempts = 30
	maxVocab    = 100
	maxStreak   = 14
)

// Fixed weights, summing to 100.
const (
	weightSkills   = 50.0
	weightLessons  = 15.0
	weightAttempts = 10.0
	weightVocab    = 10.0
	weightStreak   = 10.0
	weightRecency  = 5.0
)

// CalculatePrepScore maps the raw counters to a 0-100 readiness score.
// Deterministic, no I/O.
//
// The skill component splits evenly between an oral sub-score
// (speaking+listening) and a written sub-score (reading+writing). For the
// "today" range the oral sub-score is tripled before being clamped to 100,
// so for identical inputs it is never lower than under "week" or "month".
func CalculatePrepScore(in PrepInputs) int {
	oral := (in.SpeakingPct + in.ListeningPct) / 2
	if in.TimeRange == RangeToday {
		oral *= todayOralBoost
	}
	oral = clamp(oral, 0, 100)
	written := clamp((in.ReadingPct+in.WritingPct)/2, 0, 100)
	skills := (oral + written) / 2

	score := weightSkills * skills / 100
	score += weightLessons * ratio(in.LessonsCompleted, maxLessons)
	score += weightAttempts * ratio(in.TestAttempts, maxAttempts)
	score += weightVocab * ratio(in.VocabularyMastered, maxVocab)
	score += weightStreak * ratio(in.StreakDays, maxStreak)
	score += weightRecency * recencyFactor(in.DaysSinceActive)

	return int(math.Round(clamp(score, 0, 100)))
}

// recencyFactor is 1 for activity today and decays linearly to 0 over a week.
func recencyFactor(daysSinceActive int) float64 {
	if daysSinceActive < 0 {
		return 0
	}
	return clamp(1-float64(daysSinceActive)/7, 0, 1)
}

func ratio(value, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > limit {
		return 1
	}
	return float64(value) / float64(limit)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
