package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/accounts-api/internal/auth"
	"github.com/isdelr/accounts-api/internal/services"
	"github.com/isdelr/accounts-api/internal/validation"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service services.UserServiceProvider
	loc     *time.Location
}

// NewUserHandler creates a new UserHandler. Timestamps are rendered in loc.
func NewUserHandler(service services.UserServiceProvider, loc *time.Location) *UserHandler {
	return &UserHandler{service: service, loc: loc}
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if hasQuery(r) || r.Header.Get("Authorization") != "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	payload, err := decodePayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := validation.ValidateCreate(payload)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected registration payload")
		writeError(w, r, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	writeJSON(w, http.StatusCreated, user.Public(h.loc))
}

// GetSelf returns the authenticated user's account.
func (h *UserHandler) GetSelf(w http.ResponseWriter, r *http.Request) {
	if hasQuery(r) || hasBody(r) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// Re-read so the response reflects the stored record, not the snapshot
	// taken during authentication.
	user, err := h.service.GetUserByID(r.Context(), caller.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public(h.loc))
}

// UpdateSelf applies a partial update to the authenticated user's account.
func (h *UserHandler) UpdateSelf(w http.ResponseWriter, r *http.Request) {
	if hasQuery(r) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	payload, err := decodePayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := validation.ValidateUpdate(payload)
	if err != nil {
		log.Debug().Err(err).Str("user_id", caller.ID).Msg("Rejected update payload")
		writeError(w, r, err)
		return
	}

	if _, err := h.service.UpdateSelf(r.Context(), caller.ID, in); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify consumes the token from an activation link.
func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, token := q.Get("user"), q.Get("token")

	if err := h.service.VerifyEmail(r.Context(), id, token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
