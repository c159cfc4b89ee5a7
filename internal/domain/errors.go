package domain

import "errors"

// Engine error taxonomy. Services return these (possibly wrapped);
// handlers map them to status codes with errors.Is.
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidState      = errors.New("invalid state for operation")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflicting concurrent update")
)
