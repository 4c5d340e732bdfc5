package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/sprachlab/sprachlab/internal/storage"
)

func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

const channelUserKey contextKey = "channel_user"

// ChannelResolver maps channel addresses to user ids.
type ChannelResolver interface {
	ResolveChannelUser(channel, address string) (string, error)
}

// ChannelAuth attributes requests from messaging bridges. A request carrying
// X-Channel-Key must present the configured shared secret for its channel and
// an X-Channel-Address that maps to a known user; requests without the header
// pass through untouched.
func ChannelAuth(keys map[string]string, resolver ChannelResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Channel-Key")
			if presented == "" {
				next.ServeHTTP(w, r)
				return
			}

			channel := ""
			for name, key := range keys {
				if key != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
					channel = name
					break
				}
			}
			if channel == "" {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid channel key")
				return
			}

			address := r.Header.Get("X-Channel-Address")
			if address == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "X-Channel-Address is required")
				return
			}

			userID, err := resolver.ResolveChannelUser(channel, address)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					httpError(w, http.StatusNotFound, "not_found", "unknown channel address")
					return
				}
				httpError(w, http.StatusInternalServerError, "api_error", "resolving channel user: %v", err)
				return
			}

			ctx := context.WithValue(r.Context(), channelUserKey, channelIdentity{
				Channel: channel,
				UserID:  userID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type channelIdentity struct {
	Channel string
	UserID  string
}

// channelUser returns the channel identity attributed by ChannelAuth, if any.
func channelUser(r *http.Request) (channelIdentity, bool) {
	id, ok := r.Context().Value(channelUserKey).(channelIdentity)
	return id, ok
}
