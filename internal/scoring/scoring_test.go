package scoring

import (
	"testing"

	"github.com/sprachlab/sprachlab/internal/storage"
)

func question(number int, isExample bool, correctLetter string) storage.Question {
	q := storage.Question{Number: number, IsExample: isExample}
	for _, letter := range []string{"a", "b", "c"} {
		q.Options = append(q.Options, storage.Option{
			Letter:    letter,
			IsCorrect: letter == correctLetter,
		})
	}
	return q
}

func TestScoreSectionBasic(t *testing.T) {
	questions := []storage.Question{
		question(1, false, "a"),
		question(2, false, "c"),
	}
	answers := map[int]string{1: "a", 2: "b"}

	res := ScoreSection(questions, answers)

	if res.Score != 1 {
		t.Errorf("score = %d, want 1", res.Score)
	}
	if res.Total != 2 {
		t.Errorf("total = %d, want 2", res.Total)
	}
	if res.Percentage != 50 {
		t.Errorf("percentage = %d, want 50", res.Percentage)
	}
	if !res.Results[0].Correct || res.Results[1].Correct {
		t.Errorf("per-question flags wrong: %+v", res.Results)
	}
}

func TestScoreSectionExamplesExcluded(t *testing.T) {
	questions := []storage.Question{
		question(0, true, "a"), // example, answered correctly
		question(1, false, "b"),
	}
	answers := map[int]string{0: "a", 1: "b"}

	res := ScoreSection(questions, answers)

	if res.Total != 1 {
		t.Errorf("total = %d, want 1 (example excluded)", res.Total)
	}
	if res.Score != 1 {
		t.Errorf("score = %d, want 1", res.Score)
	}
	if len(res.Results) != 1 {
		t.Errorf("results length = %d, want 1", len(res.Results))
	}
	if res.Percentage != 100 {
		t.Errorf("percentage = %d, want 100", res.Percentage)
	}
}

func TestScoreSectionMissingCorrectOption(t *testing.T) {
	// Question 2 has no option flagged correct: expected is empty, the
	// question can never score, but it stays in the denominator.
	noCorrect := storage.Question{
		Number:  2,
		Options: []storage.Option{{Letter: "a"}, {Letter: "b"}},
	}
	questions := []storage.Question{question(1, false, "a"), noCorrect}
	answers := map[int]string{1: "a", 2: "a"}

	res := ScoreSection(questions, answers)

	if res.Score != 1 {
		t.Errorf("score = %d, want 1", res.Score)
	}
	if res.Total != 2 {
		t.Errorf("total = %d, want 2", res.Total)
	}
	if res.Results[1].Expected != "" {
		t.Errorf("expected answer = %q, want empty", res.Results[1].Expected)
	}
	if res.Results[1].Correct {
		t.Error("question without correct option must not score")
	}
}

func TestScoreSectionEmptyAnswerIncorrect(t *testing.T) {
	questions := []storage.Question{question(1, false, "a")}

	res := ScoreSection(questions, map[int]string{1: ""})
	if res.Score != 0 {
		t.Errorf("empty answer scored: %d", res.Score)
	}

	res = ScoreSection(questions, map[int]string{})
	if res.Score != 0 {
		t.Errorf("missing answer scored: %d", res.Score)
	}
}

func TestScoreSectionCaseSensitive(t *testing.T) {
	questions := []storage.Question{question(1, false, "a")}

	res := ScoreSection(questions, map[int]string{1: "A"})
	if res.Score != 0 {
		t.Error("letter match must be case-sensitive")
	}
}

func TestScoreSectionAllCorrect(t *testing.T) {
	questions := []storage.Question{
		question(1, false, "a"),
		question(2, false, "b"),
		question(3, false, "c"),
	}
	answers := map[int]string{1: "a", 2: "b", 3: "c"}

	res := ScoreSection(questions, answers)
	if res.Score != 3 || res.Percentage != 100 {
		t.Errorf("got %d/%d (%d%%), want 3/3 (100%%)", res.Score, res.Total, res.Percentage)
	}
	for _, r := range res.Results {
		if !r.Correct {
			t.Errorf("question %d not marked correct", r.Number)
		}
	}
}

func TestScoreSectionEmptySet(t *testing.T) {
	res := ScoreSection(nil, map[int]string{1: "a"})
	if res.Total != 0 || res.Score != 0 || res.Percentage != 0 {
		t.Errorf("empty set: %+v", res)
	}

	onlyExamples := []storage.Question{question(0, true, "a")}
	res = ScoreSection(onlyExamples, map[int]string{0: "a"})
	if res.Total != 0 || res.Percentage != 0 {
		t.Errorf("example-only set: %+v", res)
	}
}

func TestScoreSectionPercentageRounding(t *testing.T) {
	cases := []struct {
		correct int
		total   int
		want    int
	}{
		{1, 3, 33},
		{2, 3, 67},
		{1, 6, 17},
		{5, 6, 83},
		{1, 7, 14},
	}

	for _, tc := range cases {
		var questions []storage.Question
		answers := map[int]string{}
		for i := 1; i <= tc.total; i++ {
			questions = append(questions, question(i, false, "a"))
			if i <= tc.correct {
				answers[i] = "a"
			} else {
				answers[i] = "b"
			}
		}

		res := ScoreSection(questions, answers)
		if res.Percentage != tc.want {
			t.Errorf("%d/%d: percentage = %d, want %d", tc.correct, tc.total, res.Percentage, tc.want)
		}
	}
}
