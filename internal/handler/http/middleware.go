package http

import (
	"context"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

// RequireUserID extracts the authenticated user id the gateway injects into
// X-User-ID. Identity verification itself lives upstream; this service only
// consumes the result.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing X-User-ID header")
			return
		}

		userID, err := uuid.FromString(raw)
		if err != nil {
			log.Warn().Err(err).Str("x_user_id", raw).Msg("Invalid X-User-ID header")
			respondWithError(w, http.StatusUnauthorized, "Invalid X-User-ID header")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok
}
