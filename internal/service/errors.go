package service

import "errors"

// Sentinel errors returned by the services. Handlers map these onto
// HTTP status codes; callers test them with errors.Is.
var (
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied means the actor's role or permissions do not
	// allow the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidTransition means the requested status change is not in
	// the guarded transition table for the actor, or the order is in a
	// terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation means the request payload failed a precondition
	// before any state was written.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPasskey means the admin elevation passkey did not match.
	ErrInvalidPasskey = errors.New("invalid passkey")
)
