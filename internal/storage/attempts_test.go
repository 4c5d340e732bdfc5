package storage

import (
	"fmt"
	"testing"
	"time"
)

func TestNextAttemptNumberMonotonic(t *testing.T) {
	s := openTestStore(t)

	for want := 1; want <= 5; want++ {
		got, err := s.NextAttemptNumber("u1", "task-1")
		if err != nil {
			t.Fatalf("NextAttemptNumber: %v", err)
		}
		if got != want {
			t.Errorf("attempt %d: got %d", want, got)
		}
	}
}

func TestNextAttemptNumberIndependentPerUserAndTask(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.NextAttemptNumber("u1", "task-1"); err != nil {
		t.Fatalf("NextAttemptNumber: %v", err)
	}
	if _, err := s.NextAttemptNumber("u1", "task-1"); err != nil {
		t.Fatalf("NextAttemptNumber: %v", err)
	}

	n, err := s.NextAttemptNumber("u2", "task-1")
	if err != nil {
		t.Fatalf("NextAttemptNumber u2: %v", err)
	}
	if n != 1 {
		t.Errorf("u2 first attempt = %d, want 1", n)
	}

	n, err = s.NextAttemptNumber("u1", "task-2")
	if err != nil {
		t.Fatalf("NextAttemptNumber task-2: %v", err)
	}
	if n != 1 {
		t.Errorf("task-2 first attempt = %d, want 1", n)
	}
}

func TestSaveAndListAttempts(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		n, err := s.NextAttemptNumber("u1", "task-1")
		if err != nil {
			t.Fatalf("NextAttemptNumber: %v", err)
		}
		a := TaskAttempt{
			ID:            fmt.Sprintf("a%d", i),
			UserID:        "u1",
			TaskID:        "task-1",
			Skill:         SkillListening,
			AttemptNumber: n,
			Score:         i,
			Total:         5,
			Percentage:    i * 20,
			CompletedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.SaveAttempt(a); err != nil {
			t.Fatalf("SaveAttempt: %v", err)
		}
	}

	latest, err := s.LatestAttempt("u1", "task-1")
	if err != nil {
		t.Fatalf("LatestAttempt: %v", err)
	}
	if latest.AttemptNumber != 3 || latest.Score != 3 {
		t.Errorf("latest = %+v, want attempt 3", latest)
	}

	all, err := s.ListAttempts("u1", "", 10)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("attempt count = %d, want 3", len(all))
	}

	none, err := s.ListAttempts("u1", SkillReading, 10)
	if err != nil {
		t.Fatalf("ListAttempts reading: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("reading attempts = %d, want 0", len(none))
	}
}

func TestDuplicateAttemptNumberRejected(t *testing.T) {
	s := openTestStore(t)

	a := TaskAttempt{
		ID: "a1", UserID: "u1", TaskID: "t1", Skill: SkillReading,
		AttemptNumber: 1, Score: 1, Total: 2, Percentage: 50,
	}
	if err := s.SaveAttempt(a); err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}

	dup := a
	dup.ID = "a2"
	if err := s.SaveAttempt(dup); err == nil {
		t.Error("expected unique constraint error for duplicate attempt number")
	}
}

func TestAverageSkillPercentage(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	scores := []int{40, 60, 80}
	for i, p := range scores {
		a := TaskAttempt{
			ID: fmt.Sprintf("a%d", i), UserID: "u1", TaskID: fmt.Sprintf("t%d", i),
			Skill: SkillListening, AttemptNumber: 1,
			Score: p / 10, Total: 10, Percentage: p,
			CompletedAt: now.Add(-time.Duration(i) * time.Hour),
		}
		if err := s.SaveAttempt(a); err != nil {
			t.Fatalf("SaveAttempt: %v", err)
		}
	}

	avg, n, err := s.AverageSkillPercentage("u1", SkillListening, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("AverageSkillPercentage: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	if avg != 60 {
		t.Errorf("avg = %v, want 60", avg)
	}

	// Cutoff excludes older attempts.
	avg, n, err = s.AverageSkillPercentage("u1", SkillListening, now.Add(-90*time.Minute))
	if err != nil {
		t.Fatalf("AverageSkillPercentage cutoff: %v", err)
	}
	if n != 2 {
		t.Errorf("count within cutoff = %d, want 2", n)
	}
	if avg != 50 {
		t.Errorf("avg within cutoff = %v, want 50", avg)
	}

	// No attempts for the skill.
	avg, n, err = s.AverageSkillPercentage("u1", SkillSpeaking, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("AverageSkillPercentage empty: %v", err)
	}
	if n != 0 || avg != 0 {
		t.Errorf("empty skill: avg=%v n=%d, want 0,0", avg, n)
	}
}

func TestSectionScoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	sc := SectionScore{
		ID: "s1", UserID: "u1", TestID: "lt-001", Skill: SkillListening,
		Section: 3, AttemptNumber: 1, Score: 4, Total: 5, Percentage: 80,
		ResultsJSON: `[{"question":1,"correct":true}]`,
	}
	if err := s.SaveSectionScore(sc); err != nil {
		t.Fatalf("SaveSectionScore: %v", err)
	}

	list, err := s.ListSectionScores("u1", 10)
	if err != nil {
		t.Fatalf("ListSectionScores: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("score count = %d, want 1", len(list))
	}
	if list[0].Percentage != 80 || list[0].Section != 3 {
		t.Errorf("score mismatch: %+v", list[0])
	}
}

func TestWritingScoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	ws := WritingScore{
		ID: "w1", UserID: "u1", TaskID: "wt-1", AttemptNumber: 1,
		Overall: 72, Grammar: 65, Vocabulary: 80, Coherence: 70,
		FeedbackJSON: `{"summary":"solide"}`,
	}
	if err := s.SaveWritingScore(ws); err != nil {
		t.Fatalf("SaveWritingScore: %v", err)
	}

	list, err := s.ListWritingScores("u1", 10)
	if err != nil {
		t.Fatalf("ListWritingScores: %v", err)
	}
	if len(list) != 1 || list[0].Overall != 72 {
		t.Errorf("writing scores = %+v", list)
	}
}

func TestActiveDays(t *testing.T) {
	s := openTestStore(t)

	days := []time.Time{
		time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC), // same day, second attempt
		time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
	}
	for i, d := range days {
		a := TaskAttempt{
			ID: fmt.Sprintf("a%d", i), UserID: "u1", TaskID: fmt.Sprintf("t%d", i),
			Skill: SkillReading, AttemptNumber: 1, Score: 1, Total: 1, Percentage: 100,
			CompletedAt: d,
		}
		if err := s.SaveAttempt(a); err != nil {
			t.Fatalf("SaveAttempt: %v", err)
		}
	}

	got, err := s.ActiveDays("u1", 10)
	if err != nil {
		t.Fatalf("ActiveDays: %v", err)
	}
	want := []string{"2026-08-30", "2026-08-29", "2026-08-27"}
	if len(got) != len(want) {
		t.Fatalf("day count = %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("day %d = %q, want %q", i, got[i], want[i])
		}
	}
}
