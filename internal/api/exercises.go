package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sprachlab/sprachlab/internal/scoring"
	"github.com/sprachlab/sprachlab/internal/storage"
)

type scoreSectionRequest struct {
	TestID  string            `json:"test_id"`
	UserID  string            `json:"user_id"`
	Answers map[string]string `json:"answers"`
}

type scoreSectionResponse struct {
	Success   bool                     `json:"success"`
	Score     scoring.SectionResult    `json:"score"`
	Results   []scoring.QuestionResult `json:"results"`
	SavedData *storage.TaskAttempt     `json:"saved_data,omitempty"`
}

// handleScoreSection scores a submitted answer sheet against the stored test.
// When a user id is present the attempt and section score are persisted;
// persistence failure does not withhold the score.
func handleScoreSection(deps Deps, skill string, section int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req scoreSectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.TestID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "test_id is required")
			return
		}
		if id, ok := channelUser(r); ok && req.UserID == "" {
			req.UserID = id.UserID
		}

		test, err := deps.Store.GetTest(req.TestID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "test not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading test: %v", err)
			return
		}
		if test.Skill != skill || test.Section != section {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "test %s is not a %s section %d test", req.TestID, skill, section)
			return
		}

		answers := make(map[int]string, len(req.Answers))
		for key, letter := range req.Answers {
			n, err := strconv.Atoi(key)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "answer key %q is not a question number", key)
				return
			}
			answers[n] = letter
		}

		result := scoring.ScoreSection(test.Questions, answers)

		resp := scoreSectionResponse{Success: true, Score: result, Results: result.Results}
		if req.UserID != "" {
			attempt, err := saveSectionResult(deps.Store, req.UserID, test, result)
			if err != nil {
				deps.Logger.Error("saving section score", "user_id", req.UserID, "test_id", test.ID, "error", err)
			} else {
				resp.SavedData = attempt
				deps.Dashboards.Invalidate(req.UserID)
			}
		}

		writeJSON(w, resp)
	}
}

func saveSectionResult(store *storage.Store, userID string, test storage.Test, result scoring.SectionResult) (*storage.TaskAttempt, error) {
	attemptNumber, err := store.NextAttemptNumber(userID, test.ID)
	if err != nil {
		return nil, err
	}

	details, err := json.Marshal(result.Results)
	if err != nil {
		return nil, err
	}

	attempt := storage.TaskAttempt{
		ID:            uuid.NewString(),
		UserID:        userID,
		TaskID:        test.ID,
		Skill:         test.Skill,
		AttemptNumber: attemptNumber,
		Score:         result.Score,
		Total:         result.Total,
		Percentage:    result.Percentage,
		DetailsJSON:   string(details),
		CompletedAt:   time.Now().UTC(),
	}
	if err := store.SaveAttempt(attempt); err != nil {
		return nil, err
	}

	err = store.SaveSectionScore(storage.SectionScore{
		ID:            uuid.NewString(),
		UserID:        userID,
		TestID:        test.ID,
		Skill:         test.Skill,
		Section:       test.Section,
		AttemptNumber: attemptNumber,
		Score:         result.Score,
		Total:         result.Total,
		Percentage:    result.Percentage,
		ResultsJSON:   string(details),
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func handleListTests(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		skill := r.URL.Query().Get("skill")

		tests, err := deps.Store.ListTests(skill, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing tests: %v", err)
			return
		}
		if tests == nil {
			tests = []storage.Test{}
		}
		writeJSON(w, tests)
	}
}

func handleGetTest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		test, err := deps.Store.GetTest(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "test not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading test: %v", err)
			return
		}
		writeJSON(w, test)
	}
}
