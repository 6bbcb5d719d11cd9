package chat_errors

import "errors"

// Sentinel errors shared by every layer. Wrap with fmt.Errorf("%w: ...") and
// classify with errors.Is.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limited")
	ErrAlreadyExists = errors.New("already exists")
	// ErrStoreUnavailable marks a failure of the database or Redis itself,
	// as opposed to a rejected request. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)
