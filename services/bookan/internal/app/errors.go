package app

import "errors"

var (
	// ErrValidation is returned when caller input is missing or malformed.
	ErrValidation = errors.New("invalid input")

	ErrNotFound = errors.New("not found")

	// ErrPersistence is returned when the durable key-value store cannot be read or written.
	// The in-memory state is left as it was before the call.
	ErrPersistence = errors.New("persistence failure")

	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnavailable       = errors.New("book is not available")
	ErrInvalidTransition = errors.New("invalid loan status transition")

	// ErrInvalidCredentials is returned when credential checks are enabled and the
	// email or password does not match. It does not say which one.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	ErrRateLimited     = errors.New("too many requests")
	ErrUnauthenticated = errors.New("no active principal")
)
