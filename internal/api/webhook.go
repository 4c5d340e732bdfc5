package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/sprachlab/sprachlab/internal/webhooks"
)

func handleClerkWebhook(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "failed to read body: %v", err)
			return
		}

		event, err := deps.Webhooks.VerifyAndParse(payload, r.Header)
		if errors.Is(err, webhooks.ErrBadSignature) {
			httpError(w, http.StatusUnauthorized, "invalid_request_error", "invalid webhook signature")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid webhook payload: %v", err)
			return
		}

		if err := deps.Webhooks.Process(event); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "webhook processing failed: %v", err)
			return
		}

		writeJSON(w, map[string]any{"received": true})
	}
}
