package store

import "errors"

// Failure kinds returned by the stores. Callers match them with errors.Is;
// the HTTP layer maps each kind to a status code and treats anything else as
// an internal error.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrWeakCredential    = errors.New("password does not meet the policy")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrSelfFollow        = errors.New("cannot follow yourself")
	ErrInvalidParent     = errors.New("invalid parent comment")
)
