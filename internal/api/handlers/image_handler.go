package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/accounts-api/internal/auth"
	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/services"
)

// ProfilePicField is the multipart field carrying the picture.
const ProfilePicField = "profilePic"

// multipartOverhead leaves room for boundaries and part headers on top of
// the picture itself.
const multipartOverhead = 64 << 10

// ImageHandler handles HTTP requests for profile pictures.
type ImageHandler struct {
	service  services.ImageServiceProvider
	maxBytes int64
	loc      *time.Location
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(service services.ImageServiceProvider, maxBytes int64, loc *time.Location) *ImageHandler {
	return &ImageHandler{service: service, maxBytes: maxBytes, loc: loc}
}

// Upload stores the picture sent in the profilePic multipart field.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	file, header, err := r.FormFile(ProfilePicField)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		log.Debug().Err(err).Str("user_id", caller.ID).Msg("Rejected picture upload")
		writeError(w, r, fmt.Errorf("%w: %w", common.ErrValidation, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, fmt.Errorf("%w: %w", common.ErrValidation, err))
			return
		}
		writeError(w, r, err)
		return
	}

	img, err := h.service.UploadImage(r.Context(), caller.ID, services.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("user_id", caller.ID).Str("key", img.StorageKey).Msg("Profile picture uploaded")
	writeJSON(w, http.StatusCreated, img.Public(h.loc))
}

// Get returns the picture metadata.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	img, err := h.service.GetImage(r.Context(), caller.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, img.Public(h.loc))
}

// Delete removes the picture.
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := h.service.DeleteImage(r.Context(), caller.ID); err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Str("user_id", caller.ID).Msg("Profile picture deleted")
	w.WriteHeader(http.StatusNoContent)
}
