// Package common holds the sentinel errors shared by the validation,
// service and transport layers. Callers should match them with errors.Is.
package common

import "errors"

var (
	// client errors (400)
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrInvalidToken = errors.New("invalid token")

	// auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrTokenExpired = errors.New("token expired")

	// repository specific errors
	ErrNotFound = errors.New("not found")

	// backing store unreachable or unexpected failures
	ErrUnavailable = errors.New("service unavailable")
	ErrInternal    = errors.New("internal error")
)
