// Package apperrors defines the error taxonomy shared by the repository,
// service and handler layers.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is returned when a payload fails schema validation.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateKey is returned when a userId or username is already taken.
	ErrDuplicateKey = errors.New("user already exists")

	// ErrNotFound is returned when no user matches the given userId.
	ErrNotFound = errors.New("user not found")

	// ErrIdentityMismatch is returned by update when the path userId and the
	// body userId disagree.
	ErrIdentityMismatch = errors.New("userId in path does not match userId in body")

	// ErrPersistence wraps unclassified storage failures.
	ErrPersistence = errors.New("persistence failure")
)

// StatusCode maps an error to the HTTP status the API reports for it.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrIdentityMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
