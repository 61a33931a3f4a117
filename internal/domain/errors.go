package domain

import "errors"

var (
	// ErrNotFound indicates a referenced user, question, answer or tag is missing.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation such as a taken username or tag.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller's role is insufficient.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
)
