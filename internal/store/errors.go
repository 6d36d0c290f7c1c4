package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional write matched no row, e.g.
	// setting a password on an identity that already has one.
	ErrConflict = errors.New("conflict")
)
