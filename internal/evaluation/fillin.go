package evaluation

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sprachlab/sprachlab/internal/llm"
)

const fillInConcurrency = 4

// FillInAnswer is one gap-fill sentence with the learner's answer.
type FillInAnswer struct {
	Sentence string `json:"sentence"`
	Answer   string `json:"answer"`
}

// FillInResult is the verdict for one gap-fill answer. Results keep the
// order of the submitted answers.
type FillInResult struct {
	Sentence    string `json:"sentence"`
	Answer      string `json:"answer"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation"`
}

var fillInSchema = llm.Schema{
	Type: "object",
	Properties: map[string]llm.SchemaProperty{
		"correct":     {Type: "boolean"},
		"explanation": {Type: "string"},
	},
	Required: []string{"correct", "explanation"},
}

// EvaluateFillIns checks each gap-fill answer with the model, fanning out a
// bounded number of concurrent requests. Answers are independent; the first
// failure cancels the rest.
func (s *Service) EvaluateFillIns(ctx context.Context, language string, answers []FillInAnswer) ([]FillInResult, error) {
	results := make([]FillInResult, len(answers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fillInConcurrency)

	for i, a := range answers {
		g.Go(func() error {
			parts := buildFillInPrompt(language, a.Sentence, a.Answer)
			messages := []llm.Message{
				{Role: "system", Content: parts[0]},
				{Role: "user", Content: parts[1]},
			}

			content, err := s.chat.CompleteStructured(ctx, s.model, messages, "fill_in_check", fillInSchema)
			if err != nil {
				return fmt.Errorf("checking answer %d: %w", i+1, err)
			}

			var verdict struct {
				Correct     bool   `json:"correct"`
				Explanation string `json:"explanation"`
			}
			if err := json.Unmarshal([]byte(content), &verdict); err != nil {
				return fmt.Errorf("decoding answer %d: %w", i+1, err)
			}

			results[i] = FillInResult{
				Sentence:    a.Sentence,
				Answer:      a.Answer,
				Correct:     verdict.Correct,
				Explanation: verdict.Explanation,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
