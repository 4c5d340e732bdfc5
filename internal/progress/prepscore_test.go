package progress

import "testing"

func TestPrepScoreBounds(t *testing.T) {
	cases := []PrepInputs{
		{}, // all zero
		{LessonsCompleted: 1000, SpeakingPct: 100, ListeningPct: 100, ReadingPct: 100, WritingPct: 100,
			TestAttempts: 1000, VocabularyMastered: 1000, StreakDays: 1000, TimeRange: RangeToday},
		{SpeakingPct: -50, ListeningPct: -50, ReadingPct: -50, WritingPct: -50,
			LessonsCompleted: -1, TestAttempts: -1, VocabularyMastered: -1, StreakDays: -1, DaysSinceActive: -1},
		{SpeakingPct: 55.5, ListeningPct: 31.2, ReadingPct: 78.9, WritingPct: 42,
			LessonsCompleted: 7, TestAttempts: 12, VocabularyMastered: 34, StreakDays: 5, TimeRange: RangeWeek},
	}

	for i, in := range cases {
		got := CalculatePrepScore(in)
		if got < 0 || got > 100 {
			t.Errorf("case %d: score %d out of [0,100]", i, got)
		}
	}
}

func TestPrepScoreZeroInputs(t *testing.T) {
	if got := CalculatePrepScore(PrepInputs{DaysSinceActive: 30}); got != 0 {
		t.Errorf("zero inputs = %d, want 0", got)
	}
}

func TestPrepScoreMaxInputs(t *testing.T) {
	in := PrepInputs{
		LessonsCompleted: maxLessons, SpeakingPct: 100, ListeningPct: 100,
		ReadingPct: 100, WritingPct: 100, TestAttempts: maxAttempts,
		DaysSinceActive: 0, VocabularyMastered: maxVocab, StreakDays: maxStreak,
	}
	if got := CalculatePrepScore(in); got != 100 {
		t.Errorf("max inputs = %d, want 100", got)
	}
}

// TestTodayNeverDecreasesOralScore checks the range-multiplier property: for
// identical raw inputs, the "today" view never yields a lower score than
// "week" or "month", because the tripled oral sub-score is clamped but never
// reduced.
func TestTodayNeverDecreasesOralScore(t *testing.T) {
	grid := []float64{0, 10, 33, 50, 80, 100}
	for _, sp := range grid {
		for _, li := range grid {
			base := PrepInputs{
				SpeakingPct: sp, ListeningPct: li,
				ReadingPct: 50, WritingPct: 50,
				LessonsCompleted: 5, TestAttempts: 5, VocabularyMastered: 20, StreakDays: 3,
			}

			today := base
			today.TimeRange = RangeToday
			week := base
			week.TimeRange = RangeWeek
			month := base
			month.TimeRange = RangeMonth

			ts, ws, ms := CalculatePrepScore(today), CalculatePrepScore(week), CalculatePrepScore(month)
			if ts < ws {
				t.Errorf("sp=%v li=%v: today %d < week %d", sp, li, ts, ws)
			}
			if ws != ms {
				t.Errorf("sp=%v li=%v: week %d != month %d (multiplier only applies to today)", sp, li, ws, ms)
			}
		}
	}
}

func TestRecencyFactorDecay(t *testing.T) {
	cases := []struct {
		days int
		want float64
	}{
		{0, 1},
		{7, 0},
		{14, 0},
		{-1, 0},
	}
	for _, tc := range cases {
		if got := recencyFactor(tc.days); got != tc.want {
			t.Errorf("recencyFactor(%d) = %v, want %v", tc.days, got, tc.want)
		}
	}

	if a, b := recencyFactor(2), recencyFactor(5); a <= b {
		t.Errorf("recency should decay: f(2)=%v <= f(5)=%v", a, b)
	}
}
