package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sprachlab/sprachlab/internal/storage"
)

type registerChannelUserRequest struct {
	Channel string `json:"channel"`
	Address string `json:"address"`
	UserID  string `json:"user_id"`
}

// handleRegisterChannelUser links a messaging channel address to a user so
// bridge requests and digests can be attributed.
func handleRegisterChannelUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req registerChannelUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Channel == "" || req.Address == "" || req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "channel, address and user_id are required")
			return
		}

		err := deps.Store.SaveChannelUser(storage.ChannelUser{
			Channel:   req.Channel,
			Address:   req.Address,
			UserID:    req.UserID,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save channel user: %v", err)
			return
		}

		writeJSON(w, map[string]any{"success": true})
	}
}
