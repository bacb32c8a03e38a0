package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrInvalidToken covers a missing, expired or mismatched confirmation key.
	// Callers never learn which of the three it was.
	ErrInvalidToken = errors.New("key is invalid")
	// ErrSubjectNotFound means the user behind a confirmation request does not exist.
	ErrSubjectNotFound = errors.New("user not found")
)
