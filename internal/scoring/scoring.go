// Package scoring implements the deterministic answer scorers for exam-style
// test sections. Scoring is exact letter comparison: no partial credit, no
// normalization.
package scoring

import (
	"math"

	"github.com/sprachlab/sprachlab/internal/storage"
)

// QuestionResult is the per-question outcome of a scored section.
type QuestionResult struct {
	Number   int    `json:"question"`
	Expected string `json:"expected"`
	Given    string `json:"given"`
	Correct  bool   `json:"correct"`
}

// SectionResult aggregates a scored section.
type SectionResult struct {
	Score      int              `json:"score"`
	Total      int              `json:"total"`
	Percentage int              `json:"percentage"`
	Results    []QuestionResult `json:"results"`
}

// ScoreSection scores a user-answer map (keyed by question number, values are
// option letters) against a question set.
//
// Questions flagged is_example are excluded from both numerator and
// denominator. A question whose options carry no is_correct flag has an empty
// expected answer: it can never be marked correct but still counts in the
// denominator. Empty and missing answers are incorrect. Matching is exact and
// case-sensitive on the option letter.
func ScoreSection(questions []storage.Question, answers map[int]string) SectionResult {
	var res SectionResult

	for _, q := range questions {
		if q.IsExample {
			continue
		}

		expected := correctLetter(q)
		given := answers[q.Number]
		correct := expected != "" && given != "" && given == expected

		res.Results = append(res.Results, QuestionResult{
			Number:   q.Number,
			Expected: expected,
			Given:    given,
			Correct:  correct,
		})

		res.Total++
		if correct {
			res.Score++
		}
	}

	if res.Total > 0 {
		res.Percentage = int(math.Round(float64(res.Score) / float64(res.Total) * 100))
	}
	return res
}

func correctLetter(q storage.Question) string {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.Letter
		}
	}
	return ""
}
