package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sprachlab/sprachlab/internal/storage"
)

func handleProgress(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		d, err := deps.Dashboards.Build(userID, r.URL.Query().Get("range"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build dashboard: %v", err)
			return
		}
		writeJSON(w, d)
	}
}

func handleListVocabulary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		limit := parseIntParam(r, "limit", 100, 500)

		var (
			entries []storage.VocabularyEntry
			err     error
		)
		if q := r.URL.Query().Get("q"); q != "" {
			entries, err = deps.Store.SearchVocabulary(userID, q, limit)
		} else {
			entries, err = deps.Store.ListVocabulary(userID, limit)
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list vocabulary: %v", err)
			return
		}
		if entries == nil {
			entries = []storage.VocabularyEntry{}
		}
		writeJSON(w, map[string]any{
			"vocabulary": entries,
			"count":      len(entries),
		})
	}
}

type saveVocabularyRequest struct {
	UserID      string `json:"user_id"`
	Word        string `json:"word"`
	Translation string `json:"translation"`
	Language    string `json:"language"`
}

func handleSaveVocabulary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req saveVocabularyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if id, ok := channelUser(r); ok && req.UserID == "" {
			req.UserID = id.UserID
		}
		if req.UserID == "" || req.Word == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and word are required")
			return
		}
		if req.Language == "" {
			req.Language = "de"
		}

		entry := storage.VocabularyEntry{
			ID:          uuid.NewString(),
			UserID:      req.UserID,
			Word:        req.Word,
			Translation: req.Translation,
			Language:    req.Language,
			CreatedAt:   time.Now().UTC(),
		}
		if err := deps.Store.UpsertVocabulary(entry); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save vocabulary: %v", err)
			return
		}
		deps.Dashboards.Invalidate(req.UserID)

		writeJSON(w, map[string]any{"success": true})
	}
}

type reviewVocabularyRequest struct {
	Word     string `json:"word"`
	Language string `json:"language"`
	Mastered bool   `json:"mastered"`
}

func handleReviewVocabulary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		userID := chi.URLParam(r, "user_id")

		var req reviewVocabularyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Word == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "word is required")
			return
		}
		if req.Language == "" {
			req.Language = "de"
		}

		if err := deps.Store.MarkVocabularyReviewed(userID, req.Language, req.Word, req.Mastered); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record review: %v", err)
			return
		}
		deps.Dashboards.Invalidate(userID)

		writeJSON(w, map[string]any{"success": true})
	}
}

type grammarErrorRequest struct {
	UserID     string `json:"user_id"`
	TaskID     string `json:"task_id"`
	Category   string `json:"category"`
	ErrorText  string `json:"error_text"`
	Correction string `json:"correction"`
	Severity   string `json:"severity"`
}

func handleLogGrammarError(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req grammarErrorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if id, ok := channelUser(r); ok && req.UserID == "" {
			req.UserID = id.UserID
		}
		if req.UserID == "" || req.Category == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and category are required")
			return
		}

		g := storage.GrammarError{
			ID:         uuid.NewString(),
			UserID:     req.UserID,
			TaskID:     req.TaskID,
			Category:   req.Category,
			ErrorText:  req.ErrorText,
			Correction: req.Correction,
			Severity:   req.Severity,
			CreatedAt:  time.Now().UTC(),
		}
		if err := deps.Store.SaveGrammarError(g); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save grammar error: %v", err)
			return
		}
		deps.Dashboards.Invalidate(req.UserID)

		writeJSON(w, map[string]any{"success": true, "id": g.ID})
	}
}
