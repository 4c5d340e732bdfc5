package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sprachlab/sprachlab/internal/evaluation"
	"github.com/sprachlab/sprachlab/internal/storage"
)

type debateEvaluationRequest struct {
	ConversationID         string `json:"conversation_id"`
	UserID                 string `json:"user_id"`
	TaskID                 string `json:"task_id"`
	Language               string `json:"language"`
	Level                  string `json:"level"`
	Topic                  string `json:"topic"`
	AdditionalInstructions string `json:"additional_instructions"`
}

func handleDebateEvaluation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req debateEvaluationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ConversationID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "conversation_id is required")
			return
		}

		result, err := deps.Evaluator.EvaluateDebate(r.Context(), req.ConversationID, evaluation.DebatePromptParams{
			Language:               req.Language,
			Level:                  req.Level,
			Topic:                  req.Topic,
			AdditionalInstructions: req.AdditionalInstructions,
		})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "debate evaluation failed: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"success":    true,
			"evaluation": result,
			"metadata": map[string]string{
				"conversation_id": req.ConversationID,
				"task_id":         req.TaskID,
			},
		})
	}
}

type writingEvaluationRequest struct {
	UserID string            `json:"user_id"`
	TaskID string            `json:"task_id"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields"`
}

func handleWritingEvaluation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req writingEvaluationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.TaskID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "task_id is required")
			return
		}
		if req.Text == "" && len(req.Fields) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text or fields is required")
			return
		}
		if id, ok := channelUser(r); ok && req.UserID == "" {
			req.UserID = id.UserID
		}

		result, err := deps.Evaluator.EvaluateWriting(r.Context(), evaluation.WritingSubmission{
			UserID: req.UserID,
			TaskID: req.TaskID,
			Text:   req.Text,
			Fields: req.Fields,
		})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "writing task not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "writing evaluation failed: %v", err)
			return
		}
		if req.UserID != "" {
			deps.Dashboards.Invalidate(req.UserID)
		}

		writeJSON(w, map[string]any{
			"success":    true,
			"evaluation": result,
		})
	}
}

type fillInEvaluationRequest struct {
	Language string                    `json:"language"`
	Answers  []evaluation.FillInAnswer `json:"answers"`
}

func handleFillInEvaluation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req fillInEvaluationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Answers) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "answers is required and must not be empty")
			return
		}

		results, err := deps.Evaluator.EvaluateFillIns(r.Context(), req.Language, req.Answers)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "fill-in evaluation failed: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"success": true,
			"results": results,
		})
	}
}

type roleplayRequest struct {
	ConversationID string `json:"conversation_id"`
	TaskID         string `json:"task_id"`
	UserID         string `json:"user_id"`
	Language       string `json:"language"`
	Level          string `json:"level"`
	Scenario       string `json:"scenario"`
	Message        string `json:"message"`
}

// handleRoleplayPartner streams the partner's reply as SSE. The conversation
// id is exposed in a header so a client that opened a new conversation can
// keep using it.
func handleRoleplayPartner(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req roleplayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		channel := ""
		if id, ok := channelUser(r); ok {
			channel = id.Channel
			if req.UserID == "" {
				req.UserID = id.UserID
			}
		}

		rc, err := deps.Evaluator.Roleplay(r.Context(), evaluation.RoleplayRequest{
			ConversationID: req.ConversationID,
			TaskID:         req.TaskID,
			UserID:         req.UserID,
			Language:       req.Language,
			Level:          req.Level,
			Scenario:       req.Scenario,
			Message:        req.Message,
			Channel:        channel,
		})
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "roleplay failed: %v", err)
			return
		}
		defer rc.Close()

		w.Header().Set("X-Conversation-Id", evaluation.StreamConversationID(rc))
		streamResponse(deps, w, rc)
	}
}

func streamResponse(deps Deps, w http.ResponseWriter, rc io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	reader := bufio.NewReader(rc)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			w.Write(line)
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				deps.Logger.Error("upstream stream read error", "error", err)
				errPayload, marshalErr := json.Marshal(map[string]any{
					"error": map[string]any{
						"message": "upstream read error",
						"type":    "server_error",
					},
				})
				if marshalErr == nil {
					w.Write(append(append([]byte("data: "), errPayload...), '\n', '\n'))
					flusher.Flush()
				}
			}
			break
		}
	}
}
