package persistence

import "errors"

var (
	// ErrNotFound is returned when a lookup by identity matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller may not act on a resource. It is
	// also used for resources the caller may not know exist.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a write would violate a uniqueness rule.
	ErrConflict = errors.New("conflict")
)
