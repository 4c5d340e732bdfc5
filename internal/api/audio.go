package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/sprachlab/sprachlab/internal/storage"
	"github.com/sprachlab/sprachlab/internal/worker"
)

type wordAudioRequest struct {
	Word     string `json:"word"`
	Language string `json:"language"`
}

func handleWordAudio(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req wordAudioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Word == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "word is required")
			return
		}

		url, err := deps.Audio.WordAudio(r.Context(), req.Word, req.Language)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "audio generation failed: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"success":   true,
			"audio_url": url,
		})
	}
}

type passageAudioRequest struct {
	TestID string `json:"test_id"`
}

// handlePassageAudio queues passage synthesis instead of running it inline;
// full passages can take longer than a request should hold open.
func handlePassageAudio(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req passageAudioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.TestID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "test_id is required")
			return
		}

		if _, err := deps.Store.GetTest(req.TestID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "test not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load test: %v", err)
			return
		}

		payload, err := json.Marshal(worker.AudioPayload{TestID: req.TestID})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to encode job: %v", err)
			return
		}
		job := storage.Job{
			ID:          uuid.NewString(),
			Type:        storage.JobAudioGenerate,
			PayloadJSON: string(payload),
			MaxAttempts: 3,
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"job_id":  job.ID,
		})
	}
}
