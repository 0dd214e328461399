package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/validation"
)

// maxJSONBytes bounds account payloads, which are a handful of short strings.
const maxJSONBytes = 1 << 20

var errNotObject = errors.New("body must be a single JSON object")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError answers with the status err maps to and an empty body.
// Unexpected errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	}
	w.WriteHeader(status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrConflict),
		errors.Is(err, common.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// hasQuery reports whether the request URL carries a query string, even an
// empty one ("/path?").
func hasQuery(r *http.Request) bool {
	return r.URL.RawQuery != "" || r.URL.ForceQuery
}

// hasBody reports whether the client sent or announced a body.
func hasBody(r *http.Request) bool {
	return r.ContentLength > 0 || len(r.TransferEncoding) > 0
}

// decodePayload reads exactly one JSON object from the body.
func decodePayload(w http.ResponseWriter, r *http.Request) (validation.Payload, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))

	var p validation.Payload
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Join(common.ErrValidation, err)
	}
	if p == nil {
		return nil, errors.Join(common.ErrValidation, errNotObject)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.Join(common.ErrValidation, errNotObject)
	}
	return p, nil
}
