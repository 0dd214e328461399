package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/models"
)

// Authenticator checks an email/password pair.
type Authenticator interface {
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
}

type contextKey string

// UserKey is the context key for the authenticated user.
const UserKey = contextKey("user")

// UserFromContext returns the user stored by BasicAuthMiddleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(UserKey).(models.User)
	return u, ok
}

// BasicAuthMiddleware creates a middleware for protecting routes with HTTP
// Basic credentials. Failures answer 401 with an empty body; a failing
// credential store answers 500.
func BasicAuthMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, password, ok := r.BasicAuth()
			if !ok || email == "" || password == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			user, err := authn.AuthenticateUser(r.Context(), email, password)
			if err != nil {
				if errors.Is(err, common.ErrUnauthorized) {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				log.Error().Err(err).Msg("Failed to authenticate request")
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVerifiedMiddleware answers 403 for authenticated users that have not
// verified their email. It is a no-op when enabled is false.
func RequireVerifiedMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if !user.Verified {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
